package app

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/redmonkez12/loan-advisor-api/internal/config"
	"github.com/redmonkez12/loan-advisor-api/internal/contact"
	"github.com/redmonkez12/loan-advisor-api/internal/database"
	"github.com/redmonkez12/loan-advisor-api/internal/user"
)

// Stores bundles the repositories of the configured database driver
type Stores struct {
	Users    user.Repository
	Contacts contact.Repository

	mongoClient *mongo.Client
	mongoDB     *mongo.Database
	bunDB       *bun.DB
	driver      string
}

// OpenStores connects to the configured database. Connection failure is returned
// to the caller; the server treats it as fatal.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		client, err := database.ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		return &Stores{
			Users:       user.NewMongoRepository(db),
			Contacts:    contact.NewMongoRepository(db),
			mongoClient: client,
			mongoDB:     db,
			driver:      cfg.Driver,
		}, nil

	case config.DriverPostgres:
		db, err := database.OpenPostgres(ctx, cfg.Postgres.ConnectionString())
		if err != nil {
			return nil, err
		}
		return &Stores{
			Users:    user.NewBunRepository(db),
			Contacts: contact.NewBunRepository(db),
			bunDB:    db,
			driver:   cfg.Driver,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Driver returns the database driver in use
func (s *Stores) Driver() string {
	return s.driver
}

// InitSchema creates tables or indexes. The unique email constraint it creates
// is what rejects concurrent duplicate registrations. Safe to run repeatedly.
func (s *Stores) InitSchema(ctx context.Context) error {
	if s.bunDB != nil {
		return database.CreateSchema(ctx, s.bunDB)
	}

	if err := user.NewMongoRepository(s.mongoDB).EnsureIndexes(ctx); err != nil {
		return err
	}
	return contact.NewMongoRepository(s.mongoDB).EnsureIndexes(ctx)
}

// Close releases the database connection
func (s *Stores) Close(ctx context.Context) error {
	if s.bunDB != nil {
		return s.bunDB.Close()
	}
	if s.mongoClient != nil {
		return s.mongoClient.Disconnect(ctx)
	}
	return nil
}
