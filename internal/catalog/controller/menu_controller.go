package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pizzacall/internal/domain"
	apperrors "pizzacall/internal/errors"
)

type SnapshotLoader interface {
	Load(ctx context.Context, tenantID string) (domain.CatalogSnapshot, error)
}

type MenuResponse struct {
	PizzeriaID string            `json:"pizzeriaId"`
	Items      []domain.MenuLine `json:"items"`
}

// MenuController exposes the snapshot a call would be seeded with, so the
// browser client can show the menu the agent reads from.
type MenuController struct {
	loader SnapshotLoader
	logger *zap.Logger
}

func NewMenuController(loader SnapshotLoader, logger *zap.Logger) *MenuController {
	return &MenuController{
		loader: loader,
		logger: logger,
	}
}

func (c *MenuController) HandleGetMenu(w http.ResponseWriter, r *http.Request) {
	pizzeriaID := strings.TrimSpace(chi.URLParam(r, "pizzeriaId"))
	if pizzeriaID == "" {
		c.writeValidationError(w, "pizzeriaId is required", apperrors.ValidationDetail{
			Field:   "pizzeriaId",
			Message: "pizzeriaId is required",
		})
		return
	}

	snapshot, err := c.loader.Load(r.Context(), pizzeriaID)
	if err != nil {
		if nf, ok := apperrors.IsNotFoundError(err); ok {
			c.writeJSON(w, http.StatusNotFound, map[string]string{
				"error":   "NOT_FOUND",
				"message": nf.Message,
			})
			return
		}
		c.logger.Error("loading menu failed", zap.String("pizzeriaId", pizzeriaID), zap.Error(err))
		c.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "INTERNAL_ERROR",
			"message": "an unexpected error occurred",
		})
		return
	}

	c.writeJSON(w, http.StatusOK, MenuResponse{
		PizzeriaID: snapshot.TenantID(),
		Items:      snapshot.Lines(),
	})
}

type validationErrorResponse struct {
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Details []apperrors.ValidationDetail `json:"details"`
}

func (c *MenuController) writeValidationError(w http.ResponseWriter, message string, details ...apperrors.ValidationDetail) {
	c.writeJSON(w, http.StatusBadRequest, validationErrorResponse{
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	})
}

func (c *MenuController) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
