package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/xicom-labs/presales-bot/models"
)

const greeting = "Hi 👋 Welcome to Xicom Technologies. How can I help you today?"

// Turner processes one conversational turn.
type Turner interface {
	Turn(ctx context.Context, sessionID, question string) (string, error)
}

// ChatHandler serves the public chat surface.
type ChatHandler struct {
	Orchestrator Turner
	Logger       *log.Logger
}

func (h *ChatHandler) Register(e *echo.Echo) {
	e.GET("/", h.greet)
	e.POST("/chat", h.chat)
}

func (h *ChatHandler) greet(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": greeting})
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req models.ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		// Blank input never touches session state.
		return c.JSON(http.StatusOK, models.ChatResponse{Answer: "Please ask something.", SessionID: sessionID})
	}

	turnsTotal.Inc()
	answer, err := h.Orchestrator.Turn(c.Request().Context(), sessionID, question)
	if err != nil {
		turnErrors.Inc()
		if errors.Is(err, models.ErrSessionConflict) {
			return echo.NewHTTPError(http.StatusConflict, "session was modified concurrently, please retry")
		}
		h.Logger.Printf("turn failed: session=%s err=%v", sessionID, err)
		return echo.NewHTTPError(http.StatusBadGateway, "assistant unavailable, please try again")
	}

	return c.JSON(http.StatusOK, models.ChatResponse{Answer: answer, SessionID: sessionID})
}
