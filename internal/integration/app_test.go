package integration_test

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/cinema-booking-core/internal/app"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type TestApp struct {
	App            *app.Application
	DB             *pgxpool.Pool
	RedisClient    *redis.Client
	SessionManager *scs.SessionManager
}

func newTestApp(cfg app.Config) (*TestApp, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	db, err := app.NewDatabasePool(cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := app.NewRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	application, err := app.NewApp(cfg, logger, db, redisClient)
	if err != nil {
		redisClient.Close()
		db.Close()
		return nil, err
	}

	return &TestApp{
		App:            application,
		DB:             db,
		RedisClient:    redisClient,
		SessionManager: app.NewSessionManager(redisClient),
	}, nil
}

func (a *TestApp) Close() {
	a.App.Close()
	a.RedisClient.Close()
	a.DB.Close()
}

// sessionCookies stores a session for the given user the way the identity service
// does at login and returns the cookie that carries it.
func (a *TestApp) sessionCookies(t testing.TB, userID int, role domain.Role) []*http.Cookie {
	t.Helper()

	ctx, err := a.SessionManager.Load(context.Background(), "")
	require.NoError(t, err)

	a.SessionManager.Put(ctx, app.SessionKeyUserId.String(), userID)
	a.SessionManager.Put(ctx, app.SessionKeyRole.String(), string(role))

	token, _, err := a.SessionManager.Commit(ctx)
	require.NoError(t, err)

	return []*http.Cookie{{Name: a.SessionManager.Cookie.Name, Value: token}}
}
