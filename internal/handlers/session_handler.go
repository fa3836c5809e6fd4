package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iamCapel/mopc-reportes/internal/formsession"
	"github.com/iamCapel/mopc-reportes/internal/models"
)

// SessionHandler serves the server-side form sessions.
type SessionHandler struct {
	sessions *formsession.Manager
}

func NewSessionHandler(sessions *formsession.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type openSessionRequest struct {
	DraftID string `json:"draftId"`
}

// Open maneja POST /api/sessions
func (h *SessionHandler) Open(c *gin.Context) {
	var req openSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	// The session outlives the request.
	s, err := h.sessions.Open(context.WithoutCancel(c.Request.Context()), actor(c), req.DraftID)
	if err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.Ok(s.Snapshot()))
}

// Get maneja GET /api/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	s, err := h.sessions.Get(actor(c), c.Param("id"))
	if err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Ok(s.Snapshot()))
}

// UpdateForm maneja PUT /api/sessions/:id/form. It only schedules the
// autosave; the response does not wait for it.
func (h *SessionHandler) UpdateForm(c *gin.Context) {
	var form models.FormData
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.sessions.Get(actor(c), c.Param("id"))
	if err != nil {
		sessionError(c, err)
		return
	}
	if err := s.Update(form); err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, models.Ok(s.Snapshot()))
}

// Flush maneja POST /api/sessions/:id/flush
func (h *SessionHandler) Flush(c *gin.Context) {
	s, err := h.sessions.Get(actor(c), c.Param("id"))
	if err != nil {
		sessionError(c, err)
		return
	}
	if _, err := s.Flush(c.Request.Context()); err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Ok(s.Snapshot()))
}

// Close maneja DELETE /api/sessions/:id
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.sessions.Close(actor(c), c.Param("id")); err != nil {
		sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Ok(true))
}

// Register mounts the session routes. rg must be authenticated.
func (h *SessionHandler) Register(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.Open)
		sessions.GET("/:id", h.Get)
		sessions.PUT("/:id/form", h.UpdateForm)
		sessions.POST("/:id/flush", h.Flush)
		sessions.DELETE("/:id", h.Close)
	}
}

func sessionError(c *gin.Context, err error) {
	var resErr *formsession.ResultError
	switch {
	case errors.As(err, &resErr):
		c.JSON(StatusFor(resErr.Code), models.Result[any]{Error: resErr.Message, Code: resErr.Code})
	case errors.Is(err, formsession.ErrSessionNotFound), errors.Is(err, formsession.ErrClosed),
		errors.Is(err, formsession.ErrDraftGone):
		c.JSON(http.StatusNotFound, models.Result[any]{Error: err.Error(), Code: models.CodeNotFound})
	default:
		c.JSON(http.StatusConflict, models.Result[any]{Error: err.Error(), Code: models.CodeValidation})
	}
}
