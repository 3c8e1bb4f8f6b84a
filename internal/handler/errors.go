package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/backend"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/contacts"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/editor"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/receipt"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/workspace"
)

// statusOf maps an error to the HTTP status shown to the renderer.
func statusOf(err error) int {
	var apiErr *backend.APIError
	var urlErr *url.Error
	switch {
	case domain.IsValidation(err), errors.Is(err, contacts.ErrUpsertSkipped):
		return http.StatusUnprocessableEntity
	case errors.Is(err, workspace.ErrBillNotFound),
		errors.Is(err, workspace.ErrUnknownContact),
		errors.Is(err, editor.ErrNoSuchRow),
		backend.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrPrintInProgress):
		return http.StatusConflict
	case errors.Is(err, receipt.ErrPopupBlocked):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr), errors.As(err, &urlErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, logger *zap.Logger, err error, extra gin.H) {
	status := statusOf(err)
	body := gin.H{"error": err.Error()}
	for k, v := range extra {
		body[k] = v
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.AvailableStock != nil {
		body["availableStock"] = *apiErr.AvailableStock
	}

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, logger *zap.Logger, err error) {
	logger.Error("Invalid request", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "Invalid request format",
	})
}
