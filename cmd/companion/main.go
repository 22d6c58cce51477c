// Package main is the terminal companion chat client.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/client"
	"github.com/eunoia-wellness/companion/internal/config"
	"github.com/eunoia-wellness/companion/internal/history"
	"github.com/eunoia-wellness/companion/internal/identity"
	natsclient "github.com/eunoia-wellness/companion/internal/nats"
	"github.com/eunoia-wellness/companion/internal/notify"
	"github.com/eunoia-wellness/companion/internal/session"
	"github.com/eunoia-wellness/companion/pkg/logger"
	"github.com/eunoia-wellness/companion/pkg/tracing"
)

const helpText = `commands:
  /new        start a new conversation
  /history    list past conversations
  /open <n>   continue conversation n from /history
  /report <level> <note>
              tell the care team you may be at risk (low, medium, high, critical)
  /quit       exit
Ctrl-C while a reply is streaming stops it.`

const crisisText = "if you are in danger right now, call or text 988 (US) or your local emergency number."

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, "stderr")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx := context.Background()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "companion-client", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	id, err := identity.Resolve(cfg.Client.UserID, cfg.Client.Token)
	if err != nil {
		return fmt.Errorf("sign in with COMPANION_TOKEN or COMPANION_USER_ID: %w", err)
	}

	api, err := client.New(client.Config{
		BaseURL:        cfg.Client.BaseURL,
		RequestTimeout: cfg.Client.RequestTimeout,
	}, id, log)
	if err != nil {
		return err
	}

	list := history.New(api, log)
	notifiers := notify.Multi{list}

	if cfg.Client.NATSURL != "" {
		bus, err := natsclient.Dial(ctx, natsclient.Config{
			URL:      cfg.Client.NATSURL,
			CAFile:   cfg.Client.NATSCAFile,
			CertFile: cfg.Client.NATSCertFile,
			KeyFile:  cfg.Client.NATSKeyFile,
			Token:    cfg.Client.NATSToken,
		}, log)
		if err != nil {
			log.Warn("NATS unavailable, conversation events not published", zap.Error(err))
		} else {
			defer bus.Close()
			notifiers = append(notifiers, bus)
		}
	}

	out := os.Stdout
	p := newPrinter(out)
	m := session.NewManager(api, id.UserID, notifiers, p.observe, log)
	defer m.Close()

	if err := list.Refresh(ctx); err != nil {
		log.Warn("failed to load history", zap.Error(err))
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Fprintf(out, "Hi %s. Type a message, or /help.\n", id.UserID)

	var listed []history.Entry
	for {
		input, err := line.Prompt(userPrompt)
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		cmd, arg, _ := strings.Cut(input, " ")
		switch cmd {
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, helpText)
		case "/new":
			m.NewChat()
			fmt.Fprintln(out, "started a new conversation")
		case "/history":
			if err := list.Refresh(ctx); err != nil {
				fmt.Fprintln(out, "couldn't refresh history, showing what we have")
				log.Warn("failed to refresh history", zap.Error(err))
			}
			listed = list.Entries()
			printHistory(out, listed)
		case "/open":
			n, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil || n < 1 || n > len(listed) {
				fmt.Fprintln(out, "usage: /open <n>, with n from /history")
				continue
			}
			s, err := m.Open(ctx, listed[n-1].ConversationID)
			if err != nil {
				fmt.Fprintln(out, "couldn't open that conversation")
				log.Warn("failed to open conversation", zap.Error(err))
				continue
			}
			printTranscript(out, s.Messages())
		case "/report":
			level, note, err := parseReport(arg)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if _, err := api.ReportRiskEvent(ctx, level, note); err != nil {
				fmt.Fprintln(out, "couldn't send that report, please try again")
				log.Warn("failed to report risk event", zap.Error(err))
				continue
			}
			fmt.Fprintln(out, "thank you, someone will follow up")
			if level.Urgent() {
				fmt.Fprintln(out, crisisText)
			}
		default:
			if strings.HasPrefix(cmd, "/") {
				fmt.Fprintln(out, "unknown command, try /help")
				continue
			}
			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)
			send(ctx, m, input, out, interrupt, log)
			signal.Stop(interrupt)
		}
	}
}

// send submits input on the current session. A value on interrupt aborts
// the reply and reloads the conversation from the backend.
func send(ctx context.Context, m *session.Manager, input string, out io.Writer, interrupt <-chan os.Signal, log *logger.Logger) {
	s := m.Current()

	done := make(chan struct{})
	go func() {
		select {
		case <-interrupt:
			s.Abort()
		case <-done:
		}
	}()

	err := s.Submit(ctx, input)
	close(done)

	if errors.Is(err, session.ErrDiscarded) {
		fmt.Fprintln(out, "\n(stopped)")
		if _, err := m.Reload(ctx); err != nil {
			log.Warn("failed to reload conversation", zap.Error(err))
			m.NewChat()
		}
	}
}
