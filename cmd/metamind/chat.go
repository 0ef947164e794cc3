package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/tordrt/metamind"
	"github.com/tordrt/metamind/internal/chat"
	"github.com/tordrt/metamind/internal/docs"
)

func newChatCmd() *cobra.Command {
	input := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Document a schema, then ask questions about it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, input)
		},
	}
	input.bind(cmd)
	return cmd
}

// repl handles one line of chat input at a time.
type repl struct {
	manager *chat.Manager
	session *chat.Session
	key     string
	out     io.Writer
}

func runChat(cmd *cobra.Command, input *inputFlags) error {
	ctx := cmd.Context()
	s, err := input.load(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), cfg.Extract.SampleRows)
	if err != nil {
		return err
	}

	line := liner.NewLiner()
	defer func() { _ = line.Close() }()
	line.SetCtrlCAborts(true)

	key, err := apiKey(line)
	if err != nil {
		return err
	}

	manager := chat.NewManager(newClient())
	manager.HistoryBudget = cfg.Chat.HistoryBudget
	manager.Log = appLog
	r := &repl{manager: manager, session: metamind.NewSession(s, nil), key: key, out: cmd.OutOrStdout()}

	if r.document(ctx) {
		_, _ = fmt.Fprintln(r.out, "Documentation ready. Ask a question, or type /help.")
	} else {
		_, _ = fmt.Fprintln(r.out, "Questions still work without documentation; type /docs to try again.")
	}
	return r.run(ctx, line)
}

// prompter reads chat input. Line history lives only in memory.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// run reads lines until /exit, ctrl-C or end of input.
func (r *repl) run(ctx context.Context, p prompter) error {
	for {
		text, err := p.Prompt("metamind> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				_, _ = fmt.Fprintln(r.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		p.AppendHistory(text)
		if r.handle(ctx, text) {
			return nil
		}
	}
}

// document asks the model to document the session's schema and reports whether
// it succeeded. Failures are printed and leave the session without docs.
func (r *repl) document(ctx context.Context) bool {
	s := r.session.Schema()
	_, _ = fmt.Fprintf(r.out, "Documenting %d tables...\n", len(s.Tables))
	records, err := metamind.GenerateDocs(ctx, r.manager.Caller, s, r.key)
	if err != nil {
		_, _ = fmt.Fprintf(r.out, "error: failed to generate documentation: %v\n", err)
		return false
	}
	r.session.SetDocs(records)
	return true
}

// handle runs a slash command or asks a question. It reports whether the
// session should end.
func (r *repl) handle(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "/exit", "/quit":
		return true
	case "/help":
		_, _ = fmt.Fprintln(r.out, "Commands: /docs shows (or retries) the documentation, /history shows the conversation, /exit quits.")
		return false
	case "/docs":
		if len(r.session.Docs()) == 0 && !r.document(ctx) {
			return false
		}
		_, _ = fmt.Fprint(r.out, docs.Markdown(r.session.Docs()))
		return false
	case "/history":
		turns := r.session.Turns()
		if len(turns) == 0 {
			_, _ = fmt.Fprintln(r.out, "(no questions yet)")
		}
		for _, t := range turns {
			_, _ = fmt.Fprintf(r.out, "[%s] %s: %s\n", t.Time.Format("15:04:05"), t.Role, t.Text)
		}
		return false
	}
	if strings.HasPrefix(text, "/") {
		_, _ = fmt.Fprintf(r.out, "Unknown command: %s (type /help)\n", text)
		return false
	}

	answer, err := r.manager.Ask(ctx, r.session, r.key, text)
	if err != nil {
		_, _ = fmt.Fprintf(r.out, "error: %v\n", err)
		return false
	}
	_, _ = fmt.Fprintln(r.out, answer)
	return false
}
