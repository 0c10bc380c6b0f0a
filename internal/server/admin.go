package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/xicom-labs/presales-bot/internal/store"
	"github.com/xicom-labs/presales-bot/models"
	"github.com/xicom-labs/presales-bot/repository"
)

// AdminHandler exposes read-only projections of session and lead data.
type AdminHandler struct {
	Sessions     repository.SessionRepository
	Leads        *store.Store // nil when the archive is disabled
	Secret       []byte
	PasswordHash string
}

func (h *AdminHandler) Register(e *echo.Echo) {
	e.POST("/api/auth/login", h.login)

	g := e.Group("/api/admin")
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, h.Secret) })
	g.GET("/sessions", h.listSessions)
	g.GET("/sessions/:id", h.sessionDetail)
	g.GET("/leads", h.listLeads)
}

type loginRequest struct {
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *AdminHandler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if h.PasswordHash == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "admin login not configured")
	}
	if bcrypt.CompareHashAndPassword([]byte(h.PasswordHash), []byte(req.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	signed, err := SignJWT("admin", h.Secret, 24*time.Hour)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: signed})
}

type sessionDetailResponse struct {
	SessionID    string           `json:"session_id"`
	MessageCount int              `json:"message_count"`
	Messages     []models.Message `json:"messages"`
	Slots        models.Slots     `json:"slots"`
	Leads        []models.Lead    `json:"leads"`
}

func (h *AdminHandler) sessionDetail(c echo.Context) error {
	if h.Sessions == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session store not available")
	}
	id := c.Param("id")
	sess, err := h.Sessions.GetSession(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sessionDetailResponse{
		SessionID:    id,
		MessageCount: len(sess.Messages),
		Messages:     sess.Messages,
		Slots:        sess.Slots,
		Leads:        sess.Leads,
	})
}

type sessionListResponse struct {
	TotalSessions int                     `json:"total_sessions"`
	Sessions      []models.SessionSummary `json:"sessions"`
	NextCursor    string                  `json:"next_cursor,omitempty"`
}

func (h *AdminHandler) listSessions(c echo.Context) error {
	if h.Sessions == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session store not available")
	}
	cursor := c.QueryParam("cursor")
	count := int64(100)
	if v := c.QueryParam("count"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid count")
		}
		count = n
	}

	sessions, next, err := h.Sessions.ListSessions(c.Request().Context(), cursor, count)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	summaries := make([]models.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, s.Summarize())
	}
	return c.JSON(http.StatusOK, sessionListResponse{
		TotalSessions: len(summaries),
		Sessions:      summaries,
		NextCursor:    next,
	})
}

type leadListResponse struct {
	TotalLeads int                  `json:"total_leads"`
	Leads      []store.ArchivedLead `json:"leads"`
}

func (h *AdminHandler) listLeads(c echo.Context) error {
	if h.Leads == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "lead archive not configured")
	}
	limit, offset := 100, 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		offset = n
	}

	leads, err := h.Leads.ListLeads(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if leads == nil {
		leads = []store.ArchivedLead{}
	}
	return c.JSON(http.StatusOK, leadListResponse{TotalLeads: len(leads), Leads: leads})
}
