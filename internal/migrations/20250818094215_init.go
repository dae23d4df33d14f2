package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upInit, downInit)
}

const initSchema = `
	CREATE TABLE IF NOT EXISTS ingest_results (
		id SERIAL PRIMARY KEY,
		source_url TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (source_url, owner_id)
	);
	CREATE INDEX IF NOT EXISTS idx_ingest_results_owner ON ingest_results (owner_id, created_at DESC);
	`

func upInit(tx *sql.Tx) error {
	_, err := tx.Exec(initSchema)
	if err != nil {
		return err
	}
	return nil
}

func downInit(tx *sql.Tx) error {
	_, err := tx.Exec(`
	DROP TABLE IF EXISTS ingest_results;
	`)
	if err != nil {
		return err
	}
	return nil
}
