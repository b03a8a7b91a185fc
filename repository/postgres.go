package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/demesne/go-demesne-server/types"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresMigrations create the document table shared by all Postgres backed repositories
var PostgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS demesne_documents (
		db_name    TEXT        NOT NULL,
		id         TEXT        NOT NULL,
		data       JSONB       NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (db_name, id)
	)`,
}

// OpenPostgres connects to dsn and runs the migrations
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	for _, migration := range PostgresMigrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// implements Repository interface using a Postgres JSONB table
type PostgresRepository struct {
	db     *sqlx.DB
	dbName string
}

func NewPostgresRepository(db *sqlx.DB, dbName string) Repository {
	return &PostgresRepository{db: db, dbName: dbName}
}

type documentRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

// GetByID returns the stored JSON as []byte
func (p *PostgresRepository) GetByID(ctx context.Context, id string) (interface{}, error) {
	var row documentRow
	err := p.db.GetContext(ctx, &row, `SELECT id, data FROM demesne_documents WHERE db_name = $1 AND id = $2`, p.dbName, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.Data, nil
}

// Save upserts the document. Revisions are not tracked, the last write wins.
func (p *PostgresRepository) Save(ctx context.Context, docID string, data interface{}) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO demesne_documents (db_name, id, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (db_name, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		p.dbName, docID, string(encoded))
	return err
}

func (p *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM demesne_documents WHERE db_name = $1 AND id = $2`, p.dbName, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (p *PostgresRepository) GetDBName() string {
	return p.dbName
}
