package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/applock"
	"github.com/nimasrn/ledger-book/internal/services"
	xhttp "github.com/nimasrn/ledger-book/pkg/http"
	"github.com/nimasrn/ledger-book/pkg/logger"
)

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to encode response", "path", string(ctx.Path()), "error", err)
		status = xhttp.StatusInternalServerError
		b = []byte(`{"error":"internal error"}`)
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps the service error taxonomy onto status codes.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrBalanceDrift):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	case errors.Is(err, applock.ErrInvalidPIN), errors.Is(err, applock.ErrPINMismatch):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	case errors.Is(err, applock.ErrWrongPIN), errors.Is(err, applock.ErrInvalidToken):
		writeError(ctx, xhttp.StatusUnauthorized, err.Error())
	case errors.Is(err, applock.ErrAlreadyEnabled), errors.Is(err, applock.ErrNotEnabled):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	default:
		logger.Error("request failed", "path", string(ctx.Path()), "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, "internal error")
	}
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func pathUUID(ctx *xhttp.RequestCtx, name string) (uuid.UUID, bool) {
	raw, _ := ctx.UserValue(name).(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid "+name+": "+raw)
		return uuid.Nil, false
	}
	return id, true
}

// parseTime accepts RFC3339 or YYYY-MM-DD; a bare date is midnight in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, loc)
}
