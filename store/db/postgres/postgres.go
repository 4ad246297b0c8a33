package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/feedbacksense/internal/profile"
	"github.com/hrygo/feedbacksense/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL database from the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cannot connect to postgres")
	}

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS feedback_analysis (
	id SERIAL PRIMARY KEY,
	feedback TEXT NOT NULL,
	category VARCHAR(50) NOT NULL,
	entities TEXT,
	summary TEXT,
	sentiment VARCHAR(20),
	priority VARCHAR(20),
	route VARCHAR(50),
	action_items TEXT,
	trend_analysis TEXT,
	source VARCHAR(20) NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_feedback_analysis_created_at ON feedback_analysis (created_at);

CREATE TABLE IF NOT EXISTS analysis_summaries (
	id SERIAL PRIMARY KEY,
	summary_data JSONB NOT NULL,
	created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
);
`

// Migrate creates the schema if it does not exist.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to migrate schema")
	}
	// Tables created by earlier versions lack the source column.
	if _, err := d.db.ExecContext(ctx,
		`ALTER TABLE feedback_analysis ADD COLUMN IF NOT EXISTS source VARCHAR(20) NOT NULL DEFAULT ''`); err != nil {
		return errors.Wrap(err, "failed to add source column")
	}
	return nil
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
