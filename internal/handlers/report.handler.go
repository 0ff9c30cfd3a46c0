package handlers

import (
	"context"
	"strings"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/model"
	xhttp "github.com/nimasrn/ledger-book/pkg/http"
)

type ReportService interface {
	Report(ctx context.Context, p model.Period) (*model.Report, error)
}

type StatementService interface {
	Statement(ctx context.Context, customerID uuid.UUID, order model.StatementOrder) (*model.Statement, error)
}

type ReportHandler struct {
	reports    ReportService
	statements StatementService
	// markdown renders a statement for ?format=md
	markdown func(*model.Statement) string
}

func RegisterReportRoutes(e *router.Group, h *ReportHandler) {
	e.GET("/reports", h.GetReport)
	e.GET("/customers/{id}/statement", h.GetStatement)
}

func NewReportHandler(reports ReportService, statements StatementService, markdown func(*model.Statement) string) *ReportHandler {
	return &ReportHandler{reports: reports, statements: statements, markdown: markdown}
}

func (h *ReportHandler) GetReport(ctx *xhttp.RequestCtx) {
	period, err := model.ParsePeriod(query(ctx, "period"))
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	r, err := h.reports.Report(ctx, period)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, r)
}

func (h *ReportHandler) GetStatement(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	st, err := h.statements.Statement(ctx, id, model.StatementOrder(query(ctx, "order")))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	if h.markdown != nil && strings.EqualFold(query(ctx, "format"), "md") {
		ctx.Response.Header.Set("Content-Type", "text/markdown; charset=utf-8")
		ctx.SetStatusCode(xhttp.StatusOK)
		ctx.SetBodyString(h.markdown(st))
		return
	}
	if st.Lines == nil {
		st.Lines = []model.StatementLine{}
	}
	writeJSON(ctx, xhttp.StatusOK, st)
}
