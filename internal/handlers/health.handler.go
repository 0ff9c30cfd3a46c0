package handlers

import (
	"context"

	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/ledger-book/pkg/http"
)

type HealthService interface {
	Get(ctx context.Context) (map[string]string, error)
}

type HealthHandler struct {
	svc HealthService
}

type healthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(svc HealthService) *HealthHandler {
	return &HealthHandler{svc: svc}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	deps, err := h.svc.Get(ctx)
	if err != nil {
		writeJSON(ctx, xhttp.StatusServiceUnavailable, healthResponse{Status: "degraded", Dependencies: deps})
		return
	}
	writeJSON(ctx, xhttp.StatusOK, healthResponse{Status: "ok", Dependencies: deps})
}
