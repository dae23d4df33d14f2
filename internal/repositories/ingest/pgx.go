package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/comment-pulse/internal/domain"
	"github.com/orgball2608/comment-pulse/internal/repositories"
	"github.com/orgball2608/comment-pulse/pkg/logger"

	sq "github.com/Masterminds/squirrel"
)

type Pgx struct {
	pg     *pgxpool.Pool
	logger logger.Logger
}

func NewPgx(pg *pgxpool.Pool, logger logger.Logger) *Pgx {
	return &Pgx{
		pg:     pg,
		logger: logger.WithComponent("IngestRepo"),
	}
}

var _ Repository = (*Pgx)(nil)

func findExistingQuery(sourceURL, ownerID string) (string, []any, error) {
	return repositories.SqBuilder.
		Select("payload").
		From("ingest_results").
		Where(sq.Eq{"source_url": sourceURL, "owner_id": ownerID}).
		Limit(1).
		ToSql()
}

func upsertQuery(sourceURL, ownerID string, platform domain.Platform, payload []byte, now time.Time) (string, []any, error) {
	return repositories.SqBuilder.
		Insert("ingest_results").
		Columns("source_url", "owner_id", "platform", "payload", "created_at", "updated_at").
		Values(sourceURL, ownerID, string(platform), payload, now, now).
		Suffix("ON CONFLICT (source_url, owner_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at").
		ToSql()
}

func getByOwnerQuery(ownerID string) (string, []any, error) {
	return repositories.SqBuilder.
		Select("payload").
		From("ingest_results").
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("created_at DESC").
		ToSql()
}

func cleanupQuery(cutoff time.Time) (string, []any, error) {
	return repositories.SqBuilder.
		Delete("ingest_results").
		Where(sq.Lt{"updated_at": cutoff}).
		ToSql()
}

func (p *Pgx) FindExisting(ctx context.Context, sourceURL, ownerID string) (*domain.AnalyzedResult, error) {
	query, args, err := findExistingQuery(sourceURL, ownerID)
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	var payload []byte
	err = p.pg.QueryRow(ctx, query, args...).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var result domain.AnalyzedResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *Pgx) Upsert(ctx context.Context, sourceURL, ownerID string, result *domain.AnalyzedResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}

	query, args, err := upsertQuery(sourceURL, ownerID, result.Platform, payload, time.Now())
	if err != nil {
		return repositories.ErrBadQuery
	}

	_, err = p.pg.Exec(ctx, query, args...)
	return err
}

func (p *Pgx) GetByOwner(ctx context.Context, ownerID string) ([]*domain.AnalyzedResult, error) {
	query, args, err := getByOwnerQuery(ownerID)
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.AnalyzedResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var result domain.AnalyzedResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, err
		}
		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pgx) CleanupOldRecords(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	query, args, err := cleanupQuery(cutoff)
	if err != nil {
		return 0, repositories.ErrBadQuery
	}

	result, err := p.pg.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
