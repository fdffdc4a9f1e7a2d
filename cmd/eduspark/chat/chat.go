// Package chatcmder provides the chat command, an interactive session with
// the EduSpark study assistant.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eduspark/portal/pkg/chat"
	"github.com/eduspark/portal/pkg/cliui"
	"github.com/eduspark/portal/pkg/config"
	"github.com/eduspark/portal/pkg/dotdir"
	"github.com/eduspark/portal/pkg/logger"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	endpoint  string
	apiKey    string
	timeout   uint
	resume    bool
	render    bool
	configDir string
	debug     bool

	in  io.Reader
	out io.Writer

	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session with the EduSpark study assistant.

Each message is posted to the chat endpoint together with the conversation so
far, and the reply is printed as it streams in. Press Ctrl+C while a reply is
streaming to abandon it; the unanswered message is dropped from the history.

The conversation is saved to the .eduspark/ directory after every reply. Use
--resume to continue the last saved conversation.

Commands:
  /clear   Start a new conversation
  /exit    Quit (Ctrl+D also quits)

Examples:
  eduspark chat
  eduspark chat --endpoint http://localhost:8080/functions/v1/ai-chat
  eduspark chat --resume --render`

const chatShortDesc string = "Chat with the EduSpark study assistant"

var chatFlags = []string{
	config.FlagEndpoint,
	config.FlagTimeout,
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, chatFlags)
			cmder.load(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddUintFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	cmd.Flags().BoolVarP(&cmder.resume, "resume", "r", false, "Continue the last saved conversation")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Wait for each full reply and render it as markdown")

	return cmd
}

func (c *chatCommander) load(v *viper.Viper) {
	cfg := config.FromViper(v)
	c.endpoint = cfg.Chat.Endpoint
	c.apiKey = cfg.Chat.APIKey
	c.timeout = cfg.Chat.TimeoutSeconds
}

func (c *chatCommander) run(ctx context.Context) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	client, err := chat.NewClient(chat.ClientConfig{
		Endpoint: c.endpoint,
		APIKey:   c.apiKey,
		Timeout:  time.Duration(c.timeout) * time.Second,
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}

	conv := chat.NewConversation(client)
	ddm := dotdir.NewManager()

	fmt.Fprintln(c.out)
	if c.resume {
		transcript, err := ddm.LoadTranscript(c.configDir)
		if err != nil {
			return fmt.Errorf("loading transcript: %w", err)
		}
		if transcript != nil {
			if err := conv.Restore(fromTranscript(transcript)); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "  %s Resuming conversation %s\n",
				cliui.SuccessMark,
				cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(conv.Messages()))),
			)
		}
	}
	if len(conv.Messages()) == 0 {
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	fmt.Fprintf(c.out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Endpoint:"),
		cliui.NameStyle.Render(c.endpoint),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(c.out)
			return nil
		case "/clear":
			if err := conv.Restore(nil); err != nil {
				return err
			}
			if err := ddm.ClearTranscript(c.configDir); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "  %s New conversation\n\n", cliui.DimStyle.Render("●"))
			continue
		}

		if err := c.turn(ctx, conv, input); err != nil {
			fmt.Fprintf(c.out, "\n  %s %s\n\n", cliui.FailMark, chat.UserMessage(err))
			c.logger.Debug("chat turn failed", "error", err)
			continue
		}

		if err := ddm.SaveTranscript(toTranscript(conv.Messages()), c.configDir); err != nil {
			c.logger.Warn("could not save transcript", "error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	fmt.Fprintln(c.out)
	return nil
}

// turn sends one message. Ctrl+C cancels only the reply that is streaming.
func (c *chatCommander) turn(ctx context.Context, conv *chat.Conversation, input string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if c.render {
		var reply chat.Message
		err := cliui.Step(c.out, "Thinking", func() error {
			var err error
			reply, err = conv.Send(ctx, input, nil)
			return err
		})
		if err != nil {
			return err
		}

		rendered, err := cliui.RenderMarkdown(reply.Content)
		if err != nil {
			c.logger.Debug("markdown render failed", "error", err)
		}
		fmt.Fprintf(c.out, "\n%s%s\n", assistantPrompt, rendered)
		return nil
	}

	fmt.Fprint(c.out, assistantPrompt)
	_, err := conv.Send(ctx, input, func(delta string) {
		fmt.Fprint(c.out, delta)
	})
	if errors.Is(err, context.Canceled) {
		fmt.Fprintf(c.out, "\n  %s\n\n", cliui.DimStyle.Render("Reply cancelled."))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, "\n\n")
	return nil
}

func fromTranscript(t *dotdir.Transcript) []chat.Message {
	messages := make([]chat.Message, 0, len(t.Messages))
	for _, m := range t.Messages {
		messages = append(messages, chat.Message{Role: chat.Role(m.Role), Content: m.Content})
	}
	return messages
}

func toTranscript(messages []chat.Message) *dotdir.Transcript {
	t := &dotdir.Transcript{Messages: make([]dotdir.TranscriptMessage, 0, len(messages))}
	for _, m := range messages {
		t.Messages = append(t.Messages, dotdir.TranscriptMessage{Role: string(m.Role), Content: m.Content})
	}
	return t
}
