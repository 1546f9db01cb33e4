package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pizzacall/internal/domain"
	apperrors "pizzacall/internal/errors"
)

type mockSnapshotLoader struct {
	LoadFunc func(ctx context.Context, tenantID string) (domain.CatalogSnapshot, error)
}

func (m *mockSnapshotLoader) Load(ctx context.Context, tenantID string) (domain.CatalogSnapshot, error) {
	return m.LoadFunc(ctx, tenantID)
}

func getMenu(ctrl *MenuController, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/pizzerias/{pizzeriaId}/menu", ctrl.HandleGetMenu)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleGetMenu(t *testing.T) {
	large := "large"
	loader := &mockSnapshotLoader{LoadFunc: func(ctx context.Context, tenantID string) (domain.CatalogSnapshot, error) {
		return domain.NewCatalogSnapshot(tenantID, []domain.MenuLine{
			{Name: "Margherita", Price: 9.5},
			{Name: "Regina", Size: &large, Price: 12},
		}), nil
	}}

	rec := getMenu(NewMenuController(loader, zap.NewNop()), "/pizzerias/p-1/menu")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp MenuResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "p-1", resp.PizzeriaID)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "Margherita", resp.Items[0].Name)
	assert.Nil(t, resp.Items[0].Size)
	assert.Equal(t, "large", *resp.Items[1].Size)
}

func TestHandleGetMenu_NotFound(t *testing.T) {
	loader := &mockSnapshotLoader{LoadFunc: func(ctx context.Context, tenantID string) (domain.CatalogSnapshot, error) {
		return domain.CatalogSnapshot{}, apperrors.NewNotFoundError("no available menu items for pizzeria p-9")
	}}

	rec := getMenu(NewMenuController(loader, zap.NewNop()), "/pizzerias/p-9/menu")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestHandleGetMenu_InternalError(t *testing.T) {
	loader := &mockSnapshotLoader{LoadFunc: func(ctx context.Context, tenantID string) (domain.CatalogSnapshot, error) {
		return domain.CatalogSnapshot{}, errors.New("connection refused")
	}}

	rec := getMenu(NewMenuController(loader, zap.NewNop()), "/pizzerias/p-1/menu")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestHandleGetMenu_BlankID(t *testing.T) {
	ctrl := NewMenuController(&mockSnapshotLoader{}, zap.NewNop())

	rec := getMenu(ctrl, "/pizzerias/%20/menu")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}
