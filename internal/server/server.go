// Package server exposes the extraction, documentation and chat pipeline as a
// JSON API over per-session in-memory state.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tordrt/metamind"
	"github.com/tordrt/metamind/internal/chat"
	"github.com/tordrt/metamind/internal/config"
	"github.com/tordrt/metamind/internal/docs"
	"github.com/tordrt/metamind/internal/logger"
	"github.com/tordrt/metamind/internal/schema"
)

// APIKeyHeader carries the caller's model API key.
const APIKeyHeader = "X-API-Key"

// Caller sends one prompt to the model and returns its reply text.
type Caller interface {
	Call(ctx context.Context, prompt, apiKey string) (string, error)
}

// Server is the MetaMind JSON API.
type Server struct {
	echo   *echo.Echo
	store  *Store
	cfg    *config.Config
	caller Caller
	chat   *chat.Manager
	log    *logger.Logger
}

// New wires routes and middleware.
func New(cfg *config.Config, caller Caller, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	manager := chat.NewManager(caller)
	manager.HistoryBudget = cfg.Chat.HistoryBudget
	manager.Log = log

	s := &Server{
		echo:   echo.New(),
		store:  NewStore(),
		cfg:    cfg,
		caller: caller,
		chat:   manager,
		log:    log,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String())
			return nil
		},
	}))
	s.echo.Use(middleware.BodyLimit(bodyLimit(cfg.Server.MaxUploadBytes)))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.health)

	api := s.echo.Group("/api/sessions")
	api.POST("", s.createSession)
	api.GET("/:id", s.getSession)
	api.DELETE("/:id", s.deleteSession)
	api.POST("/:id/schema", s.loadSchema)
	api.POST("/:id/docs", s.generateDocs)
	api.POST("/:id/chat", s.ask)
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info("server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type sessionView struct {
	ID            string         `json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	Schema        *schema.Schema `json:"schema,omitempty"`
	Diagnostics   []string       `json:"diagnostics,omitempty"`
	Documentation []docs.Record  `json:"documentation,omitempty"`
	Turns         []chat.Turn    `json:"turns"`
}

func view(e *entry) sessionView {
	return sessionView{
		ID:            e.session.ID,
		CreatedAt:     e.session.CreatedAt,
		Schema:        e.session.Schema(),
		Diagnostics:   diagnosticStrings(e.diagnostics),
		Documentation: e.session.Docs(),
		Turns:         e.session.Turns(),
	}
}

func diagnosticStrings(diags []schema.Diagnostic) []string {
	if len(diags) == 0 {
		return nil
	}
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.String())
	}
	return out
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"sessions": s.store.Len(),
	})
}

func (s *Server) createSession(c echo.Context) error {
	sess := s.store.Create()
	s.log.Info("session created", "session", sess.ID)
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":         sess.ID,
		"created_at": sess.CreatedAt,
	})
}

// lookup finds the session and locks it for the rest of the request.
func (s *Server) lookup(c echo.Context) (*entry, func(), error) {
	e, ok := s.store.get(c.Param("id"))
	if !ok {
		return nil, nil, errSessionNotFound
	}
	e.mu.Lock()
	return e, e.mu.Unlock, nil
}

func (s *Server) getSession(c echo.Context) error {
	e, unlock, err := s.lookup(c)
	if err != nil {
		return s.fail(c, err)
	}
	defer unlock()
	return c.JSON(http.StatusOK, view(e))
}

func (s *Server) deleteSession(c echo.Context) error {
	if !s.store.Delete(c.Param("id")) {
		return s.fail(c, errSessionNotFound)
	}
	s.log.Info("session deleted", "session", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

type ddlRequest struct {
	DDL string `json:"ddl"`
}

// loadSchema accepts a multipart "file" upload or a JSON {"ddl": ...} body.
// New input replaces the schema and clears documentation and transcript.
func (s *Server) loadSchema(c echo.Context) error {
	e, unlock, err := s.lookup(c)
	if err != nil {
		return s.fail(c, err)
	}
	defer unlock()

	opts := &metamind.Options{SampleRows: s.cfg.Extract.SampleRows}
	ctx := c.Request().Context()

	var (
		extracted   *schema.Schema
		diagnostics []schema.Diagnostic
	)
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return badRequest(c, "multipart field \"file\" is required")
		}
		f, err := fh.Open()
		if err != nil {
			return s.fail(c, fmt.Errorf("failed to open upload: %w", err))
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return s.fail(c, fmt.Errorf("failed to read upload: %w", err))
		}
		extracted, diagnostics, err = metamind.Extract(ctx, fh.Filename, data, opts)
		if err != nil {
			return s.fail(c, err)
		}
	} else {
		var req ddlRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "body must be JSON with a \"ddl\" field or a multipart upload")
		}
		extracted, diagnostics, err = metamind.ExtractFromDDL(req.DDL, opts)
		if err != nil {
			return s.fail(c, err)
		}
	}

	e.session.Load(extracted, nil)
	e.diagnostics = diagnostics
	s.log.Info("schema loaded", "session", e.session.ID, "tables", len(extracted.Tables), "diagnostics", len(diagnostics))
	return c.JSON(http.StatusOK, view(e))
}

func (s *Server) generateDocs(c echo.Context) error {
	e, unlock, err := s.lookup(c)
	if err != nil {
		return s.fail(c, err)
	}
	defer unlock()

	sch := e.session.Schema()
	if sch == nil {
		return s.fail(c, chat.ErrNoSchema)
	}

	records, err := docs.Generate(c.Request().Context(), s.caller, sch, s.apiKey(c))
	if err != nil {
		return s.fail(c, err)
	}
	e.session.SetDocs(records)
	s.log.Info("documentation generated", "session", e.session.ID, "tables", len(records))

	return c.JSON(http.StatusOK, map[string]interface{}{
		"documentation": records,
		"markdown":      docs.Markdown(records),
	})
}

type chatRequest struct {
	Question string `json:"question"`
}

func (s *Server) ask(c echo.Context) error {
	e, unlock, err := s.lookup(c)
	if err != nil {
		return s.fail(c, err)
	}
	defer unlock()

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "body must be JSON with a \"question\" field")
	}

	answer, err := s.chat.Ask(c.Request().Context(), e.session, s.apiKey(c), req.Question)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"answer": answer,
		"turns":  e.session.Turns(),
	})
}

func (s *Server) apiKey(c echo.Context) string {
	return s.cfg.ResolveAPIKey(c.Request().Header.Get(APIKeyHeader))
}

func bodyLimit(n int64) string {
	kb := n / 1024
	if kb < 1 {
		kb = 1
	}
	return fmt.Sprintf("%dK", kb)
}
