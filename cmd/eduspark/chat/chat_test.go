package chatcmder_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	chatcmder "github.com/eduspark/portal/cmd/eduspark/chat"
	"github.com/eduspark/portal/pkg/chat"
	"github.com/eduspark/portal/pkg/dotdir"
)

var _ = Describe("NewChatCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))
	})

	It("has an --endpoint flag with the default chat function URL", func() {
		cmd := chatcmder.NewChatCmd()
		flag := cmd.Flags().Lookup("endpoint")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("e"))
		Expect(flag.DefValue).To(Equal("http://localhost:8080/functions/v1/ai-chat"))
	})

	It("has --resume and --render flags", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Flags().Lookup("resume")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("render")).NotTo(BeNil())
	})
})

var _ = Describe("Chat session", func() {
	var (
		server    *httptest.Server
		status    int
		mu        sync.Mutex
		requests  []chat.Request
		configDir string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		status = http.StatusOK
		requests = nil
		configDir = filepath.Join(GinkgoT().TempDir(), ".eduspark")
		out = &bytes.Buffer{}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req chat.Request
			_ = json.NewDecoder(r.Body).Decode(&req)
			mu.Lock()
			requests = append(requests, req)
			mu.Unlock()

			if status != http.StatusOK {
				w.WriteHeader(status)
				fmt.Fprint(w, `{"error":"nope"}`)
				return
			}

			w.Header().Set("Content-Type", "text/event-stream")
			for _, word := range []string{"Cells ", "divide."} {
				fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", word)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
		}))
		DeferCleanup(server.Close)
	})

	run := func(input string, args ...string) error {
		root := &cobra.Command{Use: "eduspark"}
		root.PersistentFlags().BoolP("debug", "d", false, "")
		root.PersistentFlags().String("config-dir", configDir, "")
		root.AddCommand(chatcmder.NewChatCmd())
		root.SetIn(strings.NewReader(input))
		root.SetOut(out)
		root.SetErr(out)
		root.SetArgs(append([]string{"chat", "--endpoint", server.URL}, args...))
		return root.Execute()
	}

	It("streams replies and saves the transcript", func() {
		Expect(run("What is mitosis?\n/exit\n")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Cells divide."))

		transcript, err := dotdir.NewManager().LoadTranscript(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(transcript).NotTo(BeNil())
		Expect(transcript.Messages).To(Equal([]dotdir.TranscriptMessage{
			{Role: "user", Content: "What is mitosis?"},
			{Role: "assistant", Content: "Cells divide."},
		}))
	})

	It("sends the history with every turn", func() {
		Expect(run("first\nsecond\n")).To(Succeed())

		Expect(requests).To(HaveLen(2))
		Expect(requests[1].Messages).To(Equal([]chat.Message{
			{Role: chat.RoleUser, Content: "first"},
			{Role: chat.RoleAssistant, Content: "Cells divide."},
			{Role: chat.RoleUser, Content: "second"},
		}))
	})

	It("resumes the saved conversation", func() {
		Expect(dotdir.NewManager().SaveTranscript(&dotdir.Transcript{
			Messages: []dotdir.TranscriptMessage{
				{Role: "user", Content: "earlier"},
				{Role: "assistant", Content: "reply"},
			},
		}, configDir)).To(Succeed())

		Expect(run("again\n", "--resume")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Resuming conversation"))
		Expect(requests).To(HaveLen(1))
		Expect(requests[0].Messages).To(HaveLen(3))
		Expect(requests[0].Messages[0].Content).To(Equal("earlier"))
	})

	It("starts fresh without --resume", func() {
		Expect(dotdir.NewManager().SaveTranscript(&dotdir.Transcript{
			Messages: []dotdir.TranscriptMessage{{Role: "user", Content: "earlier"}},
		}, configDir)).To(Succeed())

		Expect(run("hello\n")).To(Succeed())
		Expect(requests[0].Messages).To(Equal([]chat.Message{{Role: chat.RoleUser, Content: "hello"}}))
	})

	It("clears the conversation on /clear", func() {
		Expect(run("first\n/clear\nsecond\n")).To(Succeed())

		Expect(requests).To(HaveLen(2))
		Expect(requests[1].Messages).To(HaveLen(1))
	})

	It("shows the rate limit notice and keeps going", func() {
		status = http.StatusTooManyRequests
		Expect(run("hello\nhello again\n")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Rate limit exceeded. Please try again later."))
		Expect(requests).To(HaveLen(2))
		Expect(requests[1].Messages).To(HaveLen(1))
	})

	It("renders the full reply with --render", func() {
		Expect(run("hello\n", "--render")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Thinking"))
		Expect(out.String()).To(ContainSubstring("Cells divide."))
	})
})
