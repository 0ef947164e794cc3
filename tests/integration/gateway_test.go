//go:build integration
// +build integration

package integration

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tordrt/metamind"
	"github.com/tordrt/metamind/internal/chat"
	"github.com/tordrt/metamind/internal/llm"
)

const pipelineDDL = `
CREATE TABLE users (
    id INT PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE orders (
    id INT PRIMARY KEY,
    user_id INT NOT NULL REFERENCES users(id),
    total DECIMAL(10, 2) NOT NULL
);
`

func liveClient(t *testing.T) (*llm.Client, string) {
	t.Helper()
	key := os.Getenv("GROQ_API_KEY")
	if key == "" {
		t.Skip("GROQ_API_KEY not set")
	}
	cfg := llm.DefaultConfig()
	cfg.BaseURL = envOr("METAMIND_LLM_BASE_URL", cfg.BaseURL)
	cfg.Model = envOr("METAMIND_LLM_MODEL", cfg.Model)
	return llm.NewClient(cfg), key
}

func TestLivePipeline(t *testing.T) {
	client, key := liveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s, _, err := metamind.ExtractFromDDL(pipelineDDL, nil)
	if err != nil {
		t.Fatalf("ExtractFromDDL failed: %v", err)
	}

	records, err := metamind.GenerateDocs(ctx, client, s, key)
	if err != nil {
		t.Fatalf("GenerateDocs failed: %v", err)
	}
	if len(records) != 2 || records[0].Table != "users" || records[1].Table != "orders" {
		t.Fatalf("unexpected records: %+v", records)
	}

	sess := metamind.NewSession(s, records)
	answer, err := chat.NewManager(client).Ask(ctx, sess, key, "Which column links orders to users?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if !strings.Contains(strings.ToLower(answer), "user_id") {
		t.Errorf("answer does not mention user_id: %s", answer)
	}
	if len(sess.Turns()) != 2 {
		t.Errorf("expected 2 turns, got %d", len(sess.Turns()))
	}
}

func TestLiveInvalidKey(t *testing.T) {
	client, _ := liveClient(t)

	_, err := client.Call(context.Background(), "ping", "gsk_invalid_key_for_tests")
	if !llm.IsKind(err, llm.AuthFailed) {
		t.Errorf("error = %v, want AUTH_FAILED", err)
	}
}
