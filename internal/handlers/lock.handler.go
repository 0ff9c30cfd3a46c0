package handlers

import (
	"context"
	"strings"

	"github.com/fasthttp/router"
	"github.com/nimasrn/ledger-book/internal/applock"
	xhttp "github.com/nimasrn/ledger-book/pkg/http"
	"github.com/nimasrn/ledger-book/pkg/logger"
)

type LockGate interface {
	Status(ctx context.Context) (bool, error)
	Setup(ctx context.Context, pin, confirm string) error
	Remove(ctx context.Context, pin string) error
	Unlock(ctx context.Context, pin string) (*applock.Session, error)
	Verify(ctx context.Context, token string) error
}

type LockHandler struct {
	gate LockGate
}

type pinRequest struct {
	PIN     string `json:"pin"`
	Confirm string `json:"confirm"`
}

type lockStatusResponse struct {
	Enabled bool `json:"enabled"`
}

func RegisterLockRoutes(e *router.Group, h *LockHandler) {
	e.GET("/lock", h.GetStatus)
	e.POST("/lock/setup", h.Setup)
	e.POST("/lock/unlock", h.Unlock)
	e.POST("/lock/remove", h.Remove)
}

func NewLockHandler(gate LockGate) *LockHandler {
	return &LockHandler{gate: gate}
}

func (h *LockHandler) GetStatus(ctx *xhttp.RequestCtx) {
	enabled, err := h.gate.Status(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, lockStatusResponse{Enabled: enabled})
}

func (h *LockHandler) Setup(ctx *xhttp.RequestCtx) {
	var req pinRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := h.gate.Setup(ctx, req.PIN, req.Confirm); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, lockStatusResponse{Enabled: true})
}

func (h *LockHandler) Unlock(ctx *xhttp.RequestCtx) {
	var req pinRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	session, err := h.gate.Unlock(ctx, req.PIN)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, session)
}

func (h *LockHandler) Remove(ctx *xhttp.RequestCtx) {
	var req pinRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := h.gate.Remove(ctx, req.PIN); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, lockStatusResponse{Enabled: false})
}

// LockMiddleware rejects requests without a valid session while the PIN lock
// is enabled. Paths containing one of exempt pass through.
func LockMiddleware(gate LockGate, exempt ...string) xhttp.MiddlewareFunc {
	return func(next xhttp.RequestHandler) xhttp.RequestHandler {
		return func(ctx *xhttp.RequestCtx) {
			path := string(ctx.Path())
			for _, p := range exempt {
				if strings.Contains(path, p) {
					next(ctx)
					return
				}
			}

			if err := gate.Verify(ctx, xhttp.BearerToken(ctx)); err != nil {
				logger.Debug("locked request rejected", "path", path, "error", err)
				writeServiceError(ctx, err)
				return
			}
			next(ctx)
		}
	}
}
