package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/app"
	"github.com/nimasrn/ledger-book/internal/config"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/internal/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StatementSource builds customer statements.
type StatementSource interface {
	Statement(ctx context.Context, customerID uuid.UUID, order model.StatementOrder) (*model.Statement, error)
}

// CustomerSource lists customers the way the main API does.
type CustomerSource interface {
	View(ctx context.Context, q model.ViewQuery) (*model.CustomerView, error)
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Handler serves read-only statements to other shop tools (printers,
// messaging bots) without exposing the mutating API.
type Handler struct {
	statements StatementSource
	customers  CustomerSource
	health     func(ctx context.Context) (map[string]string, error)
}

func NewHandler(statements StatementSource, customers CustomerSource, health func(ctx context.Context) (map[string]string, error)) *Handler {
	return &Handler{statements: statements, customers: customers, health: health}
}

// GetStatement returns a statement as JSON, or as markdown with ?format=md.
func (h *Handler) GetStatement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("customer_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
		return
	}
	order, err := model.ParseStatementOrder(c.Query("order"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, err := h.statements.Statement(c.Request.Context(), id, order)
	if err != nil {
		h.fail(c, err)
		return
	}

	if c.Query("format") == "md" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(services.StatementMarkdown(st)))
		return
	}
	if st.Lines == nil {
		st.Lines = []model.StatementLine{}
	}
	c.JSON(http.StatusOK, st)
}

// ListDue returns the customers that currently owe money, most due first.
func (h *Handler) ListDue(c *gin.Context) {
	view, err := h.customers.View(c.Request.Context(), model.ViewQuery{Search: c.Query("search"), Sort: model.SortMostDue})
	if err != nil {
		h.fail(c, err)
		return
	}
	due := make([]*model.Customer, 0, len(view.Customers))
	for _, cust := range view.Customers {
		if cust.HasDue() {
			due = append(due, cust)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"customers":         due,
		"total_outstanding": view.TotalOutstanding,
	})
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	deps, err := h.health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Timestamp: time.Now(), Dependencies: deps})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now(), Dependencies: deps})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/statements/:customer_id", handler.GetStatement)
		v1.GET("/due", handler.ListDue)
		v1.GET("/health", handler.HealthCheck)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := app.Init(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	cfg := config.Get()
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := app.OpenDB()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("Failed to connect to the database")
	}
	ledger, err := app.NewLedger(context.Background(), db, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire services")
	}
	defer ledger.Close()

	handler := NewHandler(ledger.Statements, ledger.View, ledger.Health.Get)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         cfg.StatementListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Statement feed started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
