package e2e

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/ledger-book/internal/app"
	"github.com/nimasrn/ledger-book/internal/applock"
	"github.com/nimasrn/ledger-book/internal/handlers"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/internal/processor"
	"github.com/nimasrn/ledger-book/internal/services"
	xhttp "github.com/nimasrn/ledger-book/pkg/http"
	"github.com/nimasrn/ledger-book/pkg/money"
	"github.com/nimasrn/ledger-book/pkg/pg"
	"github.com/nimasrn/ledger-book/pkg/prom"
	"github.com/nimasrn/ledger-book/pkg/redis"
	"github.com/nimasrn/ledger-book/test/fixtures"
	"github.com/nimasrn/ledger-book/test/helpers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"
)

type TestEnvironment struct {
	DB           *pg.DB
	Redis        *miniredis.Miniredis
	RedisAdapter redis.RedisAdapter
	Ledger       *app.Ledger
	Gate         *applock.Gate
	Handler      xhttp.RequestHandler
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	helpers.SetupTestConfig(t, "e2e:"+t.Name())
	db := helpers.SetupTestDB(t)
	mr, adapter := helpers.SetupTestRedis(t)

	ledger, err := app.NewLedger(context.Background(), db, adapter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Events.Stop(time.Second) })

	gate := applock.NewGate(adapter, []byte("e2e-secret"), time.Hour, applock.WithCost(bcrypt.MinCost))

	s := xhttp.CreateServerWithOption(xhttp.DefaultServerOption)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(handlers.LockMiddleware(gate, "/health", "/lock"))

	g := s.Router.Group("/api/v1")
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(ledger.Health))
	handlers.RegisterLedgerRoutes(g, handlers.NewLedgerHandler(ledger.Ledger, ledger.View, time.UTC))
	handlers.RegisterReportRoutes(g, handlers.NewReportHandler(ledger.Reports, ledger.Statements, services.StatementMarkdown))
	handlers.RegisterLockRoutes(g, handlers.NewLockHandler(gate))

	return &TestEnvironment{
		DB:           db,
		Redis:        mr,
		RedisAdapter: adapter,
		Ledger:       ledger,
		Gate:         gate,
		Handler:      s.DoRouting(),
	}
}

// do runs one request through the full middleware chain and router.
func (env *TestEnvironment) do(t *testing.T, method, uri, token string, body any) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req.Header.SetContentType("application/json")
		req.SetBody(b)
	}

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	env.Handler(ctx)
	return ctx
}

func decode[T any](t *testing.T, ctx *fasthttp.RequestCtx) T {
	var v T
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &v), string(ctx.Response.Body()))
	return v
}

func TestE2E_LedgerOverHTTP(t *testing.T) {
	env := setupE2EEnvironment(t)

	ctx := env.do(t, "POST", "/api/v1/customers", "", fixtures.CustomerAsha)
	require.Equal(t, 201, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	asha := decode[model.Customer](t, ctx)
	assert.Equal(t, money.Zero, asha.TotalDue)

	ctx = env.do(t, "POST", "/api/v1/customers", "", fixtures.CustomerBilal)
	require.Equal(t, 201, ctx.Response.StatusCode())

	base := "/api/v1/customers/" + asha.ID.String()

	ctx = env.do(t, "POST", base+"/transactions", "", map[string]any{"type": "credit", "amount": "500", "note": "goods"})
	require.Equal(t, 201, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	credit := decode[model.Transaction](t, ctx)

	ctx = env.do(t, "POST", base+"/transactions", "", map[string]any{"type": "payment", "amount": "200"})
	require.Equal(t, 201, ctx.Response.StatusCode())

	ctx = env.do(t, "GET", base, "", nil)
	require.Equal(t, 200, ctx.Response.StatusCode())
	assert.Equal(t, money.MustParse("300"), decode[model.Customer](t, ctx).TotalDue)

	t.Run("zero amount is rejected without side effects", func(t *testing.T) {
		ctx := env.do(t, "POST", base+"/transactions", "", map[string]any{"type": "credit", "amount": "0"})
		assert.Equal(t, 400, ctx.Response.StatusCode())

		ctx = env.do(t, "GET", base+"/transactions", "", nil)
		require.Equal(t, 200, ctx.Response.StatusCode())
		assert.Len(t, decode[struct {
			Items []*model.Transaction `json:"items"`
		}](t, ctx).Items, 2)
	})

	t.Run("total outstanding ignores the search", func(t *testing.T) {
		ctx := env.do(t, "GET", "/api/v1/customers?search=Bilal", "", nil)
		require.Equal(t, 200, ctx.Response.StatusCode())
		view := decode[model.CustomerView](t, ctx)
		require.Len(t, view.Customers, 1)
		assert.Equal(t, "Bilal", view.Customers[0].Name)
		assert.Equal(t, money.MustParse("300"), view.TotalOutstanding)
	})

	t.Run("statement and report", func(t *testing.T) {
		ctx := env.do(t, "GET", base+"/statement?order=asc", "", nil)
		require.Equal(t, 200, ctx.Response.StatusCode())
		st := decode[model.Statement](t, ctx)
		require.Len(t, st.Lines, 2)
		assert.LessOrEqual(t, st.Lines[0].Date, st.Lines[1].Date)
		notes := map[string]string{}
		for _, l := range st.Lines {
			notes[l.Type] = l.Note
		}
		assert.Equal(t, map[string]string{"Credit": "goods", "Payment": "-"}, notes)

		ctx = env.do(t, "GET", base+"/statement?format=md", "", nil)
		require.Equal(t, 200, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Body()), "# Statement: Asha")

		ctx = env.do(t, "GET", "/api/v1/reports?period=today", "", nil)
		require.Equal(t, 200, ctx.Response.StatusCode())
		r := decode[model.Report](t, ctx)
		assert.Equal(t, 2, r.Count)
		assert.Equal(t, money.MustParse("300"), r.NetChange)
	})

	t.Run("deleting the credit reverts it", func(t *testing.T) {
		ctx := env.do(t, "DELETE", "/api/v1/transactions/"+credit.ID.String(), "", nil)
		require.Equal(t, 204, ctx.Response.StatusCode())

		ctx = env.do(t, "GET", base+"/reconcile", "", nil)
		require.Equal(t, 200, ctx.Response.StatusCode())
		rec := decode[model.Reconciliation](t, ctx)
		assert.True(t, rec.Consistent)
		assert.Equal(t, money.MustParse("-200"), rec.Stored)
		assert.Equal(t, helpers.SummedDue(t, env.DB, asha.ID), rec.Stored)
	})

	t.Run("customer deletion cascades", func(t *testing.T) {
		ctx := env.do(t, "DELETE", base, "", nil)
		require.Equal(t, 204, ctx.Response.StatusCode())

		ctx = env.do(t, "GET", base, "", nil)
		assert.Equal(t, 404, ctx.Response.StatusCode())
		assert.Equal(t, money.Zero, helpers.SummedDue(t, env.DB, asha.ID))
	})
}

func TestE2E_ReconcileReportsDrift(t *testing.T) {
	env := setupE2EEnvironment(t)

	// written behind the engine's back
	drifted := helpers.CreateTestCustomer(t, env.DB, "Drift", "000", "42")

	ctx := env.do(t, "GET", "/api/v1/customers/"+drifted.ID.String()+"/reconcile", "", nil)
	require.Equal(t, 409, ctx.Response.StatusCode())
	rec := decode[model.Reconciliation](t, ctx)
	assert.False(t, rec.Consistent)
	assert.Equal(t, money.MustParse("42"), rec.Stored)
	assert.Equal(t, money.Zero, rec.Summed)
}

func TestE2E_PINLock(t *testing.T) {
	env := setupE2EEnvironment(t)

	ctx := env.do(t, "GET", "/api/v1/customers", "", nil)
	require.Equal(t, 200, ctx.Response.StatusCode(), "open while no pin is set")

	ctx = env.do(t, "POST", "/api/v1/lock/setup", "", map[string]string{"pin": "2468", "confirm": "2468"})
	require.Equal(t, 201, ctx.Response.StatusCode(), string(ctx.Response.Body()))

	ctx = env.do(t, "GET", "/api/v1/customers", "", nil)
	assert.Equal(t, 401, ctx.Response.StatusCode())

	ctx = env.do(t, "GET", "/api/v1/health", "", nil)
	assert.Equal(t, 200, ctx.Response.StatusCode())

	ctx = env.do(t, "POST", "/api/v1/lock/unlock", "", map[string]string{"pin": "1111"})
	assert.Equal(t, 401, ctx.Response.StatusCode())

	ctx = env.do(t, "POST", "/api/v1/lock/unlock", "", map[string]string{"pin": "2468"})
	require.Equal(t, 200, ctx.Response.StatusCode())
	session := decode[applock.Session](t, ctx)

	ctx = env.do(t, "GET", "/api/v1/customers", session.Token, nil)
	assert.Equal(t, 200, ctx.Response.StatusCode())

	ctx = env.do(t, "POST", "/api/v1/lock/remove", "", map[string]string{"pin": "2468"})
	require.Equal(t, 200, ctx.Response.StatusCode())

	ctx = env.do(t, "GET", "/api/v1/customers", "", nil)
	assert.Equal(t, 200, ctx.Response.StatusCode())
}

func TestE2E_EventsReachTheProcessor(t *testing.T) {
	env := setupE2EEnvironment(t)
	require.NoError(t, prom.Create("e2e-host", "test", "ledger_e2e"))
	bg := context.Background()

	svc := processor.NewProcessorService(env.RedisAdapter, processor.Options{
		Stream:  app.EventsConfig(),
		Workers: 2,
	})
	svc.RegisterProcessor(processor.NewLedgerEventProcessor(
		processor.NewIdempotencyService(env.RedisAdapter, processor.DefaultIdempotencyConfig()),
	))
	require.NoError(t, svc.Start())
	defer svc.Stop()

	asha, err := env.Ledger.Ledger.AddCustomer(bg, fixtures.CustomerAsha)
	require.NoError(t, err)
	_, err = env.Ledger.Ledger.AddTransaction(bg, fixtures.NewCredit(asha.ID, "500", "goods"))
	require.NoError(t, err)
	_, err = env.Ledger.Ledger.AddTransaction(bg, fixtures.NewPayment(asha.ID, "200"))
	require.NoError(t, err)

	gauge := prom.MetricCollectionGaugeVec[prom.SystemLedger+prom.MetricOutstandingTotal]
	helpers.AssertEventually(t, 3*time.Second, func() bool {
		return svc.Metrics().Processed(model.EventTransactionAdded) == 2
	}, "transaction events were not processed")

	assert.Equal(t, int64(1), svc.Metrics().Processed(model.EventCustomerCreated))
	assert.Equal(t, 300.0, testutil.ToFloat64(gauge.WithLabelValues(asha.ID.String())))
}

func TestE2E_InvalidInputs(t *testing.T) {
	env := setupE2EEnvironment(t)
	bg := context.Background()

	for _, in := range fixtures.InvalidCustomerInputs {
		_, err := env.Ledger.Ledger.AddCustomer(bg, in)
		assert.ErrorIs(t, err, services.ErrValidation, "%+v", in)
	}

	asha, err := env.Ledger.Ledger.AddCustomer(bg, fixtures.CustomerAsha)
	require.NoError(t, err)

	for _, raw := range fixtures.InvalidAmounts {
		amount, err := money.Parse(raw)
		if err != nil {
			continue
		}
		in := fixtures.NewCredit(asha.ID, "1", "")
		in.Amount = amount
		_, err = env.Ledger.Ledger.AddTransaction(bg, in)
		assert.ErrorIs(t, err, services.ErrValidation, raw)
	}

	for _, raw := range fixtures.ValidAmounts {
		_, err := env.Ledger.Ledger.AddTransaction(bg, fixtures.NewCredit(asha.ID, raw, ""))
		assert.NoError(t, err, raw)
	}

	rec, err := env.Ledger.Ledger.Reconcile(bg, asha.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
}
