package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/types"
)

//go:embed sql/insert-action.sql
var insertActionSQL string

//go:embed sql/list-recent-actions.sql
var listRecentActionsSQL string

type ActionRepository interface {
	InsertAction(ctx context.Context, a types.Action) error
	ListRecent(ctx context.Context, limit int) ([]types.Action, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) ActionRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertAction(ctx context.Context, a types.Action) error {
	_, err := r.db.ExecContext(ctx, insertActionSQL,
		a.ID,
		a.Time.UTC().Format(time.RFC3339Nano),
		a.Source,
		a.Mode,
		a.Outcome,
		a.HTTPStatus,
		a.Message,
	)
	if err != nil {
		return fmt.Errorf("insert action %s: %w", a.ID, err)
	}
	return nil
}

func (r *repositoryImpl) ListRecent(ctx context.Context, limit int) ([]types.Action, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, listRecentActionsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close actions rows", "error", err)
		}
	}()

	out := []types.Action{}
	for rows.Next() {
		var (
			a  types.Action
			ts string
		)
		if err := rows.Scan(&a.ID, &ts, &a.Source, &a.Mode, &a.Outcome, &a.HTTPStatus, &a.Message); err != nil {
			return nil, err
		}
		a.Time, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
