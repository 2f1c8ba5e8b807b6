// Package e2e runs the real router with production services against a
// postgres container and miniredis. Each test gets a rolled-back
// transaction, so the database stays clean between cases.
package e2e

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/clubhub/internal/handlers"
	"github.com/nkiryanov/clubhub/internal/kv"
	"github.com/nkiryanov/clubhub/internal/logger"
	"github.com/nkiryanov/clubhub/internal/repository/postgres"
	"github.com/nkiryanov/clubhub/internal/service/auth"
	"github.com/nkiryanov/clubhub/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/clubhub/internal/service/checkin"
	"github.com/nkiryanov/clubhub/internal/service/gate"
	"github.com/nkiryanov/clubhub/internal/testutil"
)

type Services struct {
	AuthService    *auth.AuthService
	CheckinService *checkin.Service
	Storage        *postgres.Storage
}

// Create db transaction and run server with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.WithTx with it
func ServeInTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		_, redisClient := testutil.StartMiniredis(t)

		storage := postgres.NewStorage(tx)

		tokenManager, err := tokenmanager.New(
			tokenmanager.Config{SecretKey: "test-secret"},
			storage.Refresh(),
			kv.NewDenylist(redisClient),
		)
		require.NoError(t, err, "token manager should be created without errors")

		as, err := auth.NewService(auth.Config{},
			tokenManager, storage, kv.NewCodeStore(redisClient, 15*time.Minute))
		require.NoError(t, err, "auth service starting error", err)

		cs, err := checkin.NewService(kv.NewHashRegistry(redisClient), storage)
		require.NoError(t, err, "checkin service starting error", err)

		permGate, err := gate.New(storage.Permission())
		require.NoError(t, err, "permission gate starting error", err)

		router := handlers.NewRouter(as, cs, permGate, logger.NewNoOp())

		// Run http server with the router in transaction
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			AuthService:    as,
			CheckinService: cs,
			Storage:        storage,
		})
	})
}
