package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eduspark/portal/pkg/chat"
	"github.com/eduspark/portal/pkg/sse"
)

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		received chat.Request
		headers  http.Header
		client   *chat.Client
	)

	BeforeEach(func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for _, word := range []string{"Hello", ", ", "student"} {
				fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", word)
				flusher.Flush()
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
			flusher.Flush()
		}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers = r.Header.Clone()
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
			handler(w, r)
		}))

		var err error
		client, err = chat.NewClient(chat.ClientConfig{
			Endpoint: server.URL + "/functions/v1/ai-chat",
			APIKey:   "anon-key",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires an endpoint", func() {
		_, err := chat.NewClient(chat.ClientConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("posts the history and streams the reply", func() {
		var deltas []string
		done := 0

		err := client.Stream(context.Background(),
			[]chat.Message{{Role: chat.RoleUser, Content: "hi"}},
			func(d string) { deltas = append(deltas, d) },
			func() { done++ },
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(deltas).To(Equal([]string{"Hello", ", ", "student"}))
		Expect(done).To(Equal(1))

		Expect(received.Messages).To(Equal([]chat.Message{{Role: chat.RoleUser, Content: "hi"}}))
		Expect(headers.Get("Authorization")).To(Equal("Bearer anon-key"))
		Expect(headers.Get("Content-Type")).To(Equal("application/json"))
		Expect(headers.Get("Accept")).To(Equal("text/event-stream"))
	})

	DescribeTable("classifies error statuses without decoding",
		func(status int, target error, notice string) {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
				fmt.Fprint(w, `{"error":"nope"}`)
			}

			called := false
			err := client.Stream(context.Background(),
				[]chat.Message{{Role: chat.RoleUser, Content: "hi"}},
				func(string) { called = true },
				func() { called = true },
			)
			Expect(err).To(HaveOccurred())
			Expect(called).To(BeFalse())

			var statusErr *chat.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.StatusCode).To(Equal(status))
			Expect(statusErr.Body).To(Equal(`{"error":"nope"}`))
			if target != nil {
				Expect(err).To(MatchError(target))
			} else {
				Expect(errors.Is(err, chat.ErrRateLimited)).To(BeFalse())
				Expect(errors.Is(err, chat.ErrQuotaExceeded)).To(BeFalse())
			}
			Expect(chat.UserMessage(err)).To(Equal(notice))
		},
		Entry("rate limited", http.StatusTooManyRequests, chat.ErrRateLimited,
			"Rate limit exceeded. Please try again later."),
		Entry("quota exhausted", http.StatusPaymentRequired, chat.ErrQuotaExceeded,
			"AI service unavailable. Please contact support."),
		Entry("server error", http.StatusInternalServerError, nil,
			"Failed to get response. Please try again."),
		Entry("bad request", http.StatusBadRequest, nil,
			"Failed to get response. Please try again."),
	)

	It("fails without callbacks when the response has no body", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Length", "0")
			w.WriteHeader(http.StatusOK)
		}

		called := false
		err := client.Stream(context.Background(),
			[]chat.Message{{Role: chat.RoleUser, Content: "hi"}},
			func(string) { called = true },
			func() { called = true },
		)
		Expect(err).To(MatchError(sse.ErrNoBody))
		Expect(called).To(BeFalse())
		Expect(chat.UserMessage(err)).To(Equal("Failed to get response. Please try again."))
	})

	It("returns transport errors", func() {
		server.Close()

		err := client.Stream(context.Background(),
			[]chat.Message{{Role: chat.RoleUser, Content: "hi"}}, nil, nil)
		Expect(err).To(HaveOccurred())
		Expect(chat.UserMessage(err)).To(Equal("Failed to get response. Please try again."))
	})
})
