package chat_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eduspark/portal/pkg/chat"
)

// fakeStreamer replays deltas and then returns err. When block is set it
// waits for the context before returning.
type fakeStreamer struct {
	deltas  []string
	err     error
	block   chan struct{}
	history [][]chat.Message
}

func (f *fakeStreamer) Stream(ctx context.Context, messages []chat.Message, onDelta func(string), onDone func()) error {
	f.history = append(f.history, messages)
	for _, d := range f.deltas {
		onDelta(d)
	}
	if f.block != nil {
		close(f.block)
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	if onDone != nil {
		onDone()
	}
	return nil
}

var _ = Describe("Conversation", func() {
	var (
		streamer *fakeStreamer
		conv     *chat.Conversation
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		streamer = &fakeStreamer{deltas: []string{"Photo", "synthesis"}}
		conv = chat.NewConversation(streamer)
	})

	It("appends the user message and the streamed reply", func() {
		var seen []string
		reply, err := conv.Send(ctx, "What is photosynthesis?", func(d string) { seen = append(seen, d) })
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal(chat.Message{Role: chat.RoleAssistant, Content: "Photosynthesis"}))
		Expect(seen).To(Equal([]string{"Photo", "synthesis"}))

		Expect(conv.Messages()).To(Equal([]chat.Message{
			{Role: chat.RoleUser, Content: "What is photosynthesis?"},
			{Role: chat.RoleAssistant, Content: "Photosynthesis"},
		}))
	})

	It("sends the full history with each turn", func() {
		_, err := conv.Send(ctx, "first", nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = conv.Send(ctx, "second", nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(streamer.history).To(HaveLen(2))
		Expect(streamer.history[1]).To(Equal([]chat.Message{
			{Role: chat.RoleUser, Content: "first"},
			{Role: chat.RoleAssistant, Content: "Photosynthesis"},
			{Role: chat.RoleUser, Content: "second"},
		}))
	})

	It("adds no assistant message when the reply is empty", func() {
		streamer.deltas = nil

		reply, err := conv.Send(ctx, "hello", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Content).To(BeEmpty())
		Expect(conv.Messages()).To(HaveLen(1))
	})

	It("rejects blank input", func() {
		_, err := conv.Send(ctx, "   ", nil)
		Expect(err).To(MatchError(chat.ErrEmptyInput))
		Expect(conv.Messages()).To(BeEmpty())
		Expect(streamer.history).To(BeEmpty())
	})

	It("rolls the whole turn back on failure", func() {
		_, err := conv.Send(ctx, "kept", nil)
		Expect(err).NotTo(HaveOccurred())

		streamer.err = &chat.StatusError{StatusCode: 429}
		_, err = conv.Send(ctx, "lost", nil)
		Expect(err).To(MatchError(chat.ErrRateLimited))

		Expect(conv.Messages()).To(Equal([]chat.Message{
			{Role: chat.RoleUser, Content: "kept"},
			{Role: chat.RoleAssistant, Content: "Photosynthesis"},
		}))
		Expect(conv.Busy()).To(BeFalse())
	})

	It("rejects a second turn while one is streaming and cancels it", func() {
		streamer.block = make(chan struct{})
		errs := make(chan error, 1)

		go func() {
			defer GinkgoRecover()
			_, err := conv.Send(ctx, "slow", nil)
			errs <- err
		}()

		Eventually(streamer.block).Should(BeClosed())
		Expect(conv.Busy()).To(BeTrue())

		_, err := conv.Send(ctx, "impatient", nil)
		Expect(err).To(MatchError(chat.ErrTurnInFlight))

		partial := conv.Messages()
		Expect(partial).To(HaveLen(2))
		Expect(partial[1].Content).To(Equal("Photosynthesis"))

		conv.Cancel()
		Eventually(errs).Should(Receive(MatchError(context.Canceled)))
		Expect(conv.Messages()).To(BeEmpty())
		Expect(conv.Busy()).To(BeFalse())
	})

	It("restores a saved history and continues from it", func() {
		Expect(conv.Restore([]chat.Message{
			{Role: chat.RoleSystem, Content: "ignored"},
			{Role: chat.RoleUser, Content: "Hi"},
			{Role: chat.RoleAssistant, Content: "Hello!"},
		})).To(Succeed())

		_, err := conv.Send(ctx, "Explain osmosis", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(streamer.history[0]).To(Equal([]chat.Message{
			{Role: chat.RoleUser, Content: "Hi"},
			{Role: chat.RoleAssistant, Content: "Hello!"},
			{Role: chat.RoleUser, Content: "Explain osmosis"},
		}))
		Expect(conv.Messages()).To(HaveLen(4))
	})

	It("ignores Cancel when idle", func() {
		Expect(conv.Cancel).NotTo(Panic())
	})

	It("maps unknown errors to the generic notice", func() {
		streamer.err = errors.New("boom")
		_, err := conv.Send(ctx, "hello", nil)
		Expect(chat.UserMessage(err)).To(Equal("Failed to get response. Please try again."))
	})
})
