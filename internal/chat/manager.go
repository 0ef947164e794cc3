package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tordrt/metamind/internal/docs"
	"github.com/tordrt/metamind/internal/formatter"
	"github.com/tordrt/metamind/internal/logger"
)

// DefaultHistoryBudget is the number of transcript characters sent with a question.
const DefaultHistoryBudget = 6000

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrNoSchema      = errors.New("session has no schema loaded")
)

const chatInstructions = "You are an AI assistant answering questions about a database schema. Use ONLY the information below to answer."

// Caller sends one prompt to the model and returns its reply text.
type Caller interface {
	Call(ctx context.Context, prompt, apiKey string) (string, error)
}

// Manager turns questions into model calls with the session's context.
type Manager struct {
	Caller Caller
	// HistoryBudget caps the characters of prior turns included in a prompt.
	// Zero means DefaultHistoryBudget.
	HistoryBudget int
	Now           func() time.Time
	Log           *logger.Logger
}

// NewManager creates a manager with the default budget and clock.
func NewManager(c Caller) *Manager {
	return &Manager{Caller: c, HistoryBudget: DefaultHistoryBudget, Now: time.Now, Log: logger.Nop()}
}

// Ask answers question about the session's schema. On success the question and
// the answer are appended to the transcript; on failure it is left untouched.
func (m *Manager) Ask(ctx context.Context, sess *Session, apiKey, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if sess.Schema() == nil {
		return "", ErrNoSchema
	}

	prompt := m.BuildPrompt(sess, question)
	answer, err := m.Caller.Call(ctx, prompt, apiKey)
	if err != nil {
		m.log().Warn("chat question failed", "session", sess.ID, "error", err)
		return "", err
	}

	now := m.now()
	sess.appendTurns(
		Turn{Role: RoleUser, Text: question, Time: now},
		Turn{Role: RoleAssistant, Text: answer, Time: now},
	)
	m.log().Info("chat question answered", "session", sess.ID, "prompt_chars", len(prompt))
	return answer, nil
}

// BuildPrompt assembles the chat request: schema, documentation, the most recent
// turns that fit the history budget, and the new question.
func (m *Manager) BuildPrompt(sess *Session, question string) string {
	var b strings.Builder
	b.WriteString(chatInstructions)
	b.WriteString("\n\n--- SCHEMA CONTEXT ---\n")
	b.WriteString(formatter.Text(sess.Schema()))
	b.WriteString("\n--- DOCUMENTATION CONTEXT ---\n")
	b.WriteString(docs.Markdown(sess.Docs()))
	b.WriteString("\n--- CHAT HISTORY ---\n")
	for _, turn := range boundHistory(sess.Turns(), m.budget()) {
		_, _ = fmt.Fprintf(&b, "%s: %s\n", speaker(turn.Role), turn.Text)
	}
	b.WriteString("\n--- USER'S NEW QUESTION ---\n")
	b.WriteString(question)
	b.WriteString("\n")
	return b.String()
}

// boundHistory keeps the newest turns whose combined text fits budget. Turns are
// dropped whole, oldest first.
func boundHistory(turns []Turn, budget int) []Turn {
	used := 0
	start := len(turns)
	for start > 0 {
		n := len(turns[start-1].Text)
		if used+n > budget {
			break
		}
		used += n
		start--
	}
	return turns[start:]
}

func speaker(r Role) string {
	if r == RoleAssistant {
		return "Assistant"
	}
	return "User"
}

func (m *Manager) budget() int {
	if m.HistoryBudget <= 0 {
		return DefaultHistoryBudget
	}
	return m.HistoryBudget
}

func (m *Manager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func (m *Manager) log() *logger.Logger {
	if m.Log == nil {
		return logger.Nop()
	}
	return m.Log
}
