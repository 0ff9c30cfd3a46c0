package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/model"
	xhttp "github.com/nimasrn/ledger-book/pkg/http"
	"github.com/nimasrn/ledger-book/pkg/money"
)

type LedgerService interface {
	AddCustomer(ctx context.Context, in model.CustomerInput) (*model.Customer, error)
	UpdateCustomer(ctx context.Context, id uuid.UUID, in model.CustomerInput) (*model.Customer, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
	GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	AddTransaction(ctx context.Context, in model.TransactionInput) (*model.Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	ListTransactions(ctx context.Context, customerID uuid.UUID) ([]*model.Transaction, error)
	Reconcile(ctx context.Context, id uuid.UUID) (*model.Reconciliation, error)
}

type CustomerViewer interface {
	View(ctx context.Context, q model.ViewQuery) (*model.CustomerView, error)
}

type LedgerHandler struct {
	svc  LedgerService
	view CustomerViewer
	loc  *time.Location
}

func RegisterLedgerRoutes(e *router.Group, h *LedgerHandler) {
	e.POST("/customers", h.CreateCustomer)
	e.GET("/customers", h.ListCustomers)
	e.GET("/customers/{id}", h.GetCustomer)
	e.PUT("/customers/{id}", h.UpdateCustomer)
	e.DELETE("/customers/{id}", h.DeleteCustomer)
	e.GET("/customers/{id}/transactions", h.ListTransactions)
	e.POST("/customers/{id}/transactions", h.CreateTransaction)
	e.GET("/customers/{id}/reconcile", h.Reconcile)
	e.DELETE("/transactions/{id}", h.DeleteTransaction)
}

func NewLedgerHandler(svc LedgerService, view CustomerViewer, loc *time.Location) *LedgerHandler {
	if loc == nil {
		loc = time.Local
	}
	return &LedgerHandler{svc: svc, view: view, loc: loc}
}

type customerRequest struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Address *string `json:"address"`
	Photo   []byte  `json:"photo"`
}

func (r customerRequest) input() model.CustomerInput {
	return model.CustomerInput{Name: r.Name, Phone: r.Phone, Address: r.Address, Photo: r.Photo}
}

type transactionRequest struct {
	Type   string       `json:"type"`
	Amount money.Amount `json:"amount"`
	Date   string       `json:"date"`
	Note   *string      `json:"note"`
}

type transactionsResponse struct {
	Items []*model.Transaction `json:"items"`
	Total int                  `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *LedgerHandler) CreateCustomer(ctx *xhttp.RequestCtx) {
	var req customerRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	c, err := h.svc.AddCustomer(ctx, req.input())
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, c)
}

// ListCustomers serves the projection: ?search= and ?sort=most_due|recently_updated|name_asc.
func (h *LedgerHandler) ListCustomers(ctx *xhttp.RequestCtx) {
	v, err := h.view.View(ctx, model.ViewQuery{
		Search: query(ctx, "search"),
		Sort:   model.SortOrder(query(ctx, "sort")),
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if v.Customers == nil {
		v.Customers = []*model.Customer{}
	}
	writeJSON(ctx, xhttp.StatusOK, v)
}

func (h *LedgerHandler) GetCustomer(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	c, err := h.svc.GetCustomer(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, c)
}

func (h *LedgerHandler) UpdateCustomer(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req customerRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	c, err := h.svc.UpdateCustomer(ctx, id, req.input())
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, c)
}

func (h *LedgerHandler) DeleteCustomer(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteCustomer(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}

func (h *LedgerHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	list, err := h.svc.ListTransactions(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if list == nil {
		list = []*model.Transaction{}
	}
	writeJSON(ctx, xhttp.StatusOK, transactionsResponse{Items: list, Total: len(list)})
}

func (h *LedgerHandler) CreateTransaction(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	var req transactionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	txType, err := model.ParseTransactionType(req.Type)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	in := model.TransactionInput{CustomerID: id, Type: txType, Amount: req.Amount, Note: req.Note}
	if req.Date != "" {
		date, err := parseTime(req.Date, h.loc)
		if err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid date: "+req.Date)
			return
		}
		in.Date = &date
	}

	txn, err := h.svc.AddTransaction(ctx, in)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, txn)
}

func (h *LedgerHandler) DeleteTransaction(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteTransaction(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}

// Reconcile answers 200 when consistent and 409 with the figures on drift.
func (h *LedgerHandler) Reconcile(ctx *xhttp.RequestCtx) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}
	rec, err := h.svc.Reconcile(ctx, id)
	if rec != nil && !rec.Consistent {
		writeJSON(ctx, xhttp.StatusConflict, rec)
		return
	}
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, rec)
}
