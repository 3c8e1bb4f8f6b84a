package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/backend"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/history"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/workspace"
)

type HistoryHandler struct {
	history *history.Service
	session *workspace.Session
	logger  *zap.Logger
}

func NewHistoryHandler(history *history.Service, session *workspace.Session, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		session: session,
		logger:  logger,
	}
}

func (h *HistoryHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/history", h.List)
	rg.POST("/history/:id/reprint", h.Reprint)
	rg.POST("/history/:id/edit", h.Edit)
}

// List shows the bills of ?date=YYYY-MM-DD, or of the last selected day.
func (h *HistoryHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	raw := c.Query("date")
	if raw == "" {
		day, err := h.history.List(ctx, h.history.Date())
		h.dayResult(c, day, err)
		return
	}

	date, err := time.ParseInLocation(backend.DateLayout, raw, time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "date must be YYYY-MM-DD",
		})
		return
	}
	day, err := h.history.SetDate(ctx, date)
	h.dayResult(c, day, err)
}

func (h *HistoryHandler) dayResult(c *gin.Context, day *history.Day, err error) {
	if err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, day)
}

func (h *HistoryHandler) Reprint(c *gin.Context) {
	if err := h.history.Reprint(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// Edit opens a saved bill as a workspace tab.
func (h *HistoryHandler) Edit(c *gin.Context) {
	draft, err := h.history.EditAsDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, h.session.OpenDraft(c.Request.Context(), draft))
}
