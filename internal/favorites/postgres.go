package favorites

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to the database and creates the liked_recipes
// table if it does not exist.
func NewPostgresStore(dataSourceName string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newPostgresStore(db)
}

func newPostgresStore(db *sqlx.DB) (*PostgresStore, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS liked_recipes (
		seq BIGSERIAL,
		recipe_id TEXT PRIMARY KEY,
		liked_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create liked_recipes table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Like records id as liked. Liking twice keeps the first like.
func (s *PostgresStore) Like(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO liked_recipes (recipe_id) VALUES ($1) ON CONFLICT (recipe_id) DO NOTHING",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to save liked recipe: %w", err)
	}
	return nil
}

// Unlike removes id.
func (s *PostgresStore) Unlike(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM liked_recipes WHERE recipe_id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete liked recipe: %w", err)
	}
	return nil
}

// IsLiked reports whether id is liked.
func (s *PostgresStore) IsLiked(ctx context.Context, id string) (bool, error) {
	var liked bool
	err := s.db.GetContext(ctx, &liked, "SELECT EXISTS (SELECT 1 FROM liked_recipes WHERE recipe_id = $1)", id)
	if err != nil {
		return false, fmt.Errorf("failed to get liked recipe: %w", err)
	}
	return liked, nil
}

// List returns liked ids in like order.
func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids, "SELECT recipe_id FROM liked_recipes ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("failed to list liked recipes: %w", err)
	}
	return ids, nil
}
