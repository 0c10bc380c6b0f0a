package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xicom-labs/presales-bot/config"
	"github.com/xicom-labs/presales-bot/internal/booking"
	"github.com/xicom-labs/presales-bot/internal/conversation"
	"github.com/xicom-labs/presales-bot/internal/knowledge"
	"github.com/xicom-labs/presales-bot/internal/store"
	"github.com/xicom-labs/presales-bot/models"
	"github.com/xicom-labs/presales-bot/provider"
	"github.com/xicom-labs/presales-bot/repository"
)

// Run wires all dependencies and serves until the listener stops.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	// An empty knowledge base is fatal: serving ungrounded answers is
	// worse than not starting.
	kb, err := knowledge.Open(cfg.Knowledge.Dir, cfg.Knowledge.TopK, llm)
	if err != nil {
		return err
	}

	// The session store is best-effort: without it every turn runs
	// against an ephemeral default session.
	sessions, err := repository.NewSessionRepository(ctx, repository.RepoTypeRedis, cfg.Redis)
	if err != nil {
		baseLogger.Printf("redis unavailable, sessions are ephemeral: %v", err)
		sessions = nil
	}

	var leadStore *store.Store
	if cfg.Postgres.Enabled() {
		dsn, err := cfg.Postgres.DSN()
		if err != nil {
			return err
		}
		if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
			return fmt.Errorf("migrating lead archive: %w", err)
		}
		leadStore, err = store.NewWithDSN(ctx, dsn)
		if err != nil {
			return fmt.Errorf("opening lead archive: %w", err)
		}
	} else {
		baseLogger.Printf("postgres not configured, lead archive disabled")
	}

	cal, err := booking.NewGoogleCalendar(ctx, cfg.Booking.CalendarID, cfg.Booking.CredentialsFile, cfg.Booking.TokenFile)
	if err != nil {
		// Chat and discovery stay up; booking attempts will surface the
		// calendar failure per turn.
		baseLogger.Printf("calendar unavailable, booking disabled: %v", err)
		cal = booking.UnavailableCalendar{Err: err}
	}
	agent, err := booking.NewAgent(cal, cfg.Booking, nil)
	if err != nil {
		return err
	}

	orch := conversation.NewOrchestrator(conversation.Deps{
		Sessions:   sessions,
		Extractor:  llm,
		Answerer:   kb,
		Booking:    agent,
		Archive:    &leadRecorder{store: leadStore},
		MaxOffered: cfg.Booking.MaxOffered,
	})

	chat := &ChatHandler{Orchestrator: orch, Logger: baseLogger}
	chat.Register(e)

	if cfg.Server.JWTSecret != "" {
		admin := &AdminHandler{
			Sessions:     sessions,
			Leads:        leadStore,
			Secret:       []byte(cfg.Server.JWTSecret),
			PasswordHash: cfg.Server.AdminPasswordHash,
		}
		admin.Register(e)
	} else {
		baseLogger.Printf("server.jwt_secret not set, admin API disabled")
	}

	return e.Start(cfg.Server.Address)
}

// leadRecorder counts captured leads and forwards them to the archive
// when one is configured.
type leadRecorder struct {
	store *store.Store
}

func (r *leadRecorder) SaveLead(ctx context.Context, sessionID string, lead models.Lead) error {
	leadsCaptured.Inc()
	if r.store == nil {
		return nil
	}
	return r.store.SaveLead(ctx, sessionID, lead)
}
