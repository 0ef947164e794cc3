package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/metamind/internal/config"
	"github.com/tordrt/metamind/internal/llm"
)

const usersDDL = "CREATE TABLE users (id INT PRIMARY KEY, email VARCHAR(255) NOT NULL);"

const usersDocs = `TABLE: users
PURPOSE: Stores registered accounts.
COLUMNS:
- id: Surrogate key.
- email: Login address.
TAGS: User Data, Identity
QUALITY CHECKS:
- email is unique.
END TABLE
`

// fakeModel answers documentation prompts with usersDocs and anything else
// with a fixed chat answer. An empty key is rejected like the real gateway.
type fakeModel struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeModel) Call(_ context.Context, prompt, apiKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, apiKey)
	if f.err != nil {
		return "", f.err
	}
	if apiKey == "" {
		return "", &llm.APIError{Kind: llm.AuthFailed}
	}
	if strings.HasPrefix(prompt, "You are an expert data analyst") {
		return usersDocs, nil
	}
	return "The users table stores accounts.", nil
}

func testConfig() *config.Config {
	cfg := &config.Config{APIKey: "configured-key"}
	cfg.Chat.HistoryBudget = 1000
	cfg.Extract.SampleRows = 3
	cfg.Server.MaxUploadBytes = 1 << 20
	return cfg
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec, out := do(t, h, http.MethodPost, "/api/sessions", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := out["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func errorCode(out map[string]interface{}) string {
	detail, _ := out["error"].(map[string]interface{})
	code, _ := detail["code"].(string)
	return code
}

func TestSessionFlow(t *testing.T) {
	model := &fakeModel{}
	srv := New(testConfig(), model, nil)
	h := srv.Handler()

	id := createSession(t, h)
	base := "/api/sessions/" + id

	rec, out := do(t, h, http.MethodPost, base+"/schema", map[string]string{"ddl": usersDDL}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tables := out["schema"].(map[string]interface{})["tables"].([]interface{})
	assert.Len(t, tables, 1)

	rec, out = do(t, h, http.MethodPost, base+"/docs", nil, map[string]string{APIKeyHeader: "user-key"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, out["documentation"], 1)
	assert.Contains(t, out["markdown"], "Stores registered accounts.")

	rec, out = do(t, h, http.MethodPost, base+"/chat", map[string]string{"question": "What is in users?"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "The users table stores accounts.", out["answer"])

	assert.Equal(t, []string{"user-key", "configured-key"}, model.keys)

	rec, out = do(t, h, http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["turns"], 2)
	assert.Len(t, out["documentation"], 1)

	// New input clears documentation and transcript.
	rec, out = do(t, h, http.MethodPost, base+"/schema", map[string]string{"ddl": "CREATE TABLE t (a INT);"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["turns"])
	assert.Nil(t, out["documentation"])

	rec, _ = do(t, h, http.MethodDelete, base, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, out = do(t, h, http.MethodGet, base, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(out))
}

func TestSchemaUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.db")
	conn, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = conn.Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT); CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id));")
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	h := New(testConfig(), &fakeModel{}, nil).Handler()
	id := createSession(t, h)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "shop.db")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/schema", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Schema struct {
			Tables []struct {
				Name string `json:"name"`
			} `json:"tables"`
		} `json:"schema"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Schema.Tables, 2)
	assert.Equal(t, "users", out.Schema.Tables[0].Name)
	assert.Equal(t, "orders", out.Schema.Tables[1].Name)
}

func TestErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		model      *fakeModel
		setup      func(t *testing.T, h http.Handler, base string)
		method     string
		path       string
		body       interface{}
		cfgKey     string
		wantStatus int
		wantCode   string
	}{
		{
			name: "unparseable ddl", method: http.MethodPost, path: "/schema",
			body: map[string]string{"ddl": "SELECT 1;"}, wantStatus: http.StatusUnprocessableEntity, wantCode: "PARSE_ERROR",
		},
		{
			name: "docs without schema", method: http.MethodPost, path: "/docs",
			wantStatus: http.StatusConflict, wantCode: "NO_SCHEMA",
		},
		{
			name: "empty question", method: http.MethodPost, path: "/chat", setup: loadUsers,
			body: map[string]string{"question": "  "}, wantStatus: http.StatusBadRequest, wantCode: "EMPTY_QUESTION",
		},
		{
			name: "missing key", method: http.MethodPost, path: "/docs", setup: loadUsers, cfgKey: "none",
			wantStatus: http.StatusUnauthorized, wantCode: "AUTH_FAILED",
		},
		{
			name: "rate limited", model: &fakeModel{err: &llm.APIError{Kind: llm.RateLimited}}, method: http.MethodPost, path: "/docs", setup: loadUsers,
			wantStatus: http.StatusTooManyRequests, wantCode: "RATE_LIMITED",
		},
		{
			name: "unavailable", model: &fakeModel{err: &llm.APIError{Kind: llm.Unavailable}}, method: http.MethodPost, path: "/chat", setup: loadUsers,
			body: map[string]string{"question": "hi"}, wantStatus: http.StatusBadGateway, wantCode: "UNAVAILABLE",
		},
		{
			name: "bad body", method: http.MethodPost, path: "/chat", body: "not an object",
			wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.cfgKey == "none" {
				cfg.APIKey = ""
			}
			model := tt.model
			if model == nil {
				model = &fakeModel{}
			}
			h := New(cfg, model, nil).Handler()
			base := "/api/sessions/" + createSession(t, h)
			if tt.setup != nil {
				tt.setup(t, h, base)
			}

			rec, out := do(t, h, tt.method, base+tt.path, tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, errorCode(out))
		})
	}
}

func loadUsers(t *testing.T, h http.Handler, base string) {
	t.Helper()
	rec, _ := do(t, h, http.MethodPost, base+"/schema", map[string]string{"ddl": usersDDL}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFailedChatKeepsTranscript(t *testing.T) {
	model := &fakeModel{}
	srv := New(testConfig(), model, nil)
	h := srv.Handler()
	base := "/api/sessions/" + createSession(t, h)
	loadUsers(t, h, base)

	rec, _ := do(t, h, http.MethodPost, base+"/chat", map[string]string{"question": "first"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	model.mu.Lock()
	model.err = &llm.APIError{Kind: llm.Unavailable}
	model.mu.Unlock()

	rec, _ = do(t, h, http.MethodPost, base+"/chat", map[string]string{"question": "second"}, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	_, out := do(t, h, http.MethodGet, base, nil, nil)
	assert.Len(t, out["turns"], 2)
}

func TestHealth(t *testing.T) {
	srv := New(testConfig(), &fakeModel{}, nil)
	createSession(t, srv.Handler())

	rec, out := do(t, srv.Handler(), http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", out["status"])
	assert.EqualValues(t, 1, out["sessions"])
}

func TestBodyLimit(t *testing.T) {
	assert.Equal(t, "1024K", bodyLimit(1<<20))
	assert.Equal(t, "1K", bodyLimit(10))
}
