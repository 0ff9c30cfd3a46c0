package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/ledger-book/internal/config"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/pkg/pg"
	"github.com/nimasrn/ledger-book/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_ENV=test\n"), 0o600))

	assert.Equal(t, path, EnvPath([]string{"api", "--env=" + path}))
	assert.Equal(t, path, EnvPath([]string{"api", "-env=" + path}))
	assert.Equal(t, "", EnvPath([]string{"api", "--env=" + path + ".missing"}))
	assert.Equal(t, "", EnvPath([]string{"api", "--verbose"}))
}

func setupConfig(t *testing.T) {
	config.Set(&config.Config{
		AppName:            "ledger_test",
		AppTimezone:        "UTC",
		DBDriver:           pg.DriverSQLite,
		SqlitePath:         filepath.Join(t.TempDir(), "ledger.db"),
		EventStream:        "app-test",
		EventConsumerGroup: "app-test",
		EventPollInterval:  10 * time.Millisecond,
		EventBatchSize:     10,
		EventMaxLen:        100,
	})
}

func migratedDB(t *testing.T) *pg.DB {
	require.NoError(t, pg.Migrate(config.Get().WriteDB(), "../../migrations/sqlite"))
	db, err := OpenDB()
	require.NoError(t, err)
	return db
}

func TestNewLedger_WithoutRedis(t *testing.T) {
	setupConfig(t)
	ctx := context.Background()

	rdb, err := OpenRedis()
	require.NoError(t, err)
	assert.Nil(t, rdb)

	l, err := NewLedger(ctx, migratedDB(t), nil)
	require.NoError(t, err)
	defer l.Close()

	assert.Nil(t, l.Events)
	c, err := l.Ledger.AddCustomer(ctx, model.CustomerInput{Name: "Asha", Phone: "9998887771"})
	require.NoError(t, err)

	deps, err := l.Health.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"database": "up"}, deps)

	st, err := l.Statements.Statement(ctx, c.ID, model.StatementNewestFirst)
	require.NoError(t, err)
	assert.Equal(t, "Asha", st.Name)
}

func TestNewLedger_PublishesEvents(t *testing.T) {
	setupConfig(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name(), "", &goredis.UniversalOptions{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = redis.Close(t.Name()) })

	db := migratedDB(t)
	t.Cleanup(func() { _ = db.Close() })

	l, err := NewLedger(ctx, db, adapter)
	require.NoError(t, err)
	require.NotNil(t, l.Events)

	_, err = l.Ledger.AddCustomer(ctx, model.CustomerInput{Name: "Asha", Phone: "9998887771"})
	require.NoError(t, err)

	stats, err := l.Events.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Length)

	deps, err := l.Health.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "up", deps["redis"])
}
