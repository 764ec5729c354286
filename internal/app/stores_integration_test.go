//go:build integration

package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/redmonkez12/loan-advisor-api/internal/app"
	"github.com/redmonkez12/loan-advisor-api/internal/config"
	"github.com/redmonkez12/loan-advisor-api/internal/contact"
	"github.com/redmonkez12/loan-advisor-api/internal/user"
)

func setupPostgresStores(t *testing.T) *app.Stores {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("loan_advisor_test"),
		postgres.WithUsername("loan"),
		postgres.WithPassword("loan"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return openStores(t, config.DatabaseConfig{
		Driver: config.DriverPostgres,
		Postgres: config.PostgresConfig{
			Host:     host,
			Port:     port.Port(),
			User:     "loan",
			Password: "loan",
			DBName:   "loan_advisor_test",
			SSLMode:  "disable",
		},
	})
}

func setupMongoStores(t *testing.T) *app.Stores {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	return openStores(t, config.DatabaseConfig{
		Driver: config.DriverMongo,
		Mongo: config.MongoConfig{
			URI:      uri,
			Database: "loan_advisor_test",
		},
	})
}

func openStores(t *testing.T, cfg config.DatabaseConfig) *app.Stores {
	t.Helper()
	ctx := context.Background()

	stores, err := app.OpenStores(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close(context.Background()) })

	require.NoError(t, stores.InitSchema(ctx))
	// a second run must be a no-op
	require.NoError(t, stores.InitSchema(ctx))

	return stores
}

func TestStores_Postgres(t *testing.T) {
	stores := setupPostgresStores(t)
	runStoreContract(t, stores)
}

func TestStores_Mongo(t *testing.T) {
	stores := setupMongoStores(t)
	runStoreContract(t, stores)
}

func runStoreContract(t *testing.T, stores *app.Stores) {
	t.Run("users", func(t *testing.T) { testUsers(t, stores.Users) })
	t.Run("concurrent duplicate email", func(t *testing.T) { testConcurrentDuplicate(t, stores.Users) })
	t.Run("contacts", func(t *testing.T) { testContacts(t, stores.Contacts) })
}

func newUser(t *testing.T, email string) *user.User {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return &user.User{
		ID:           id.String(),
		Name:         "Integration",
		Email:        email,
		PasswordHash: "$2a$10$placeholderplaceholderplaceholderplaceholderplacehol",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testUsers(t *testing.T, repo user.Repository) {
	ctx := context.Background()

	u := newUser(t, "store@example.com")
	require.NoError(t, repo.Create(ctx, u))

	byEmail, err := repo.GetByEmail(ctx, "store@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, u.PasswordHash, byEmail.PasswordHash)
	assert.True(t, u.CreatedAt.Equal(byEmail.CreatedAt))

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "store@example.com", byID.Email)

	err = repo.Create(ctx, newUser(t, "store@example.com"))
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)

	require.NoError(t, repo.UpdatePasswordHash(ctx, u.ID, "$argon2id$new"))
	updated, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$new", updated.PasswordHash)

	_, err = repo.GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, user.ErrNotFound)
	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, user.ErrNotFound)
	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, user.ErrNotFound)
	assert.ErrorIs(t, repo.UpdatePasswordHash(ctx, uuid.NewString(), "x"), user.ErrNotFound)
}

func testConcurrentDuplicate(t *testing.T, repo user.Repository) {
	ctx := context.Background()

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)

	for i := 0; i < attempts; i++ {
		u := newUser(t, "race@example.com")
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Create(ctx, u)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, user.ErrDuplicateEmail):
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, dupes)
}

func testContacts(t *testing.T, repo contact.Repository) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := uuid.NewV7()
		require.NoError(t, err)
		created := base.Add(time.Duration(i) * time.Second)
		m := &contact.Message{
			ID:        id.String(),
			Name:      "Sender",
			Email:     "sender@example.com",
			Message:   "Hello",
			Status:    contact.StatusNew,
			CreatedAt: created,
			UpdatedAt: created,
		}
		require.NoError(t, repo.Create(ctx, m))
		ids = append(ids, m.ID)
	}

	all, err := repo.List(ctx, contact.ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})

	page, err := repo.List(ctx, contact.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)

	updatedAt := base.Add(time.Minute)
	updated, err := repo.UpdateStatus(ctx, ids[0], contact.StatusReplied, updatedAt)
	require.NoError(t, err)
	assert.Equal(t, contact.StatusReplied, updated.Status)
	assert.True(t, updatedAt.Equal(updated.UpdatedAt))
	assert.Equal(t, "Hello", updated.Message)

	again, err := repo.UpdateStatus(ctx, ids[0], contact.StatusReplied, updatedAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, contact.StatusReplied, again.Status)
	assert.True(t, updatedAt.Equal(again.UpdatedAt), "same status keeps updated_at")

	replied, err := repo.List(ctx, contact.ListOptions{Status: contact.StatusReplied, Limit: 10})
	require.NoError(t, err)
	require.Len(t, replied, 1)
	assert.Equal(t, ids[0], replied[0].ID)

	_, err = repo.UpdateStatus(ctx, uuid.NewString(), contact.StatusRead, updatedAt)
	assert.ErrorIs(t, err, contact.ErrNotFound)
}
