package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	insertResultSQL = `INSERT INTO monitoring_results (
        alert_id,
        product_id,
        triggered,
        debounced,
        current_price,
        target_price,
        error,
        checked_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    );`

	listRecentResultsSQL = `SELECT
        id,
        alert_id,
        product_id,
        triggered,
        debounced,
        current_price,
        target_price,
        error,
        checked_at,
        created_at
    FROM monitoring_results
    ORDER BY checked_at DESC
    LIMIT $1;`

	listResultsBetweenSQL = `SELECT
        id,
        alert_id,
        product_id,
        triggered,
        debounced,
        current_price,
        target_price,
        error,
        checked_at,
        created_at
    FROM monitoring_results
    WHERE checked_at >= $1
      AND checked_at < $2
    ORDER BY checked_at;`

	listAlertResultsSQL = `SELECT
        id,
        alert_id,
        product_id,
        triggered,
        debounced,
        current_price,
        target_price,
        error,
        checked_at,
        created_at
    FROM monitoring_results
    WHERE alert_id = $1
      AND checked_at >= $2
      AND checked_at < $3
    ORDER BY checked_at;`

	countResultsSQL = `SELECT COUNT(*) FROM monitoring_results;`

	deleteResultsBeforeSQL = `DELETE FROM monitoring_results WHERE checked_at < $1;`
)

// ResultStore defines operations for monitoring result auditing.
type ResultStore interface {
	InsertResults(ctx context.Context, results []ResultRecord) error
	ListRecentResults(ctx context.Context, limit int) ([]ResultRecord, error)
	ListResultsBetween(ctx context.Context, from, to time.Time) ([]ResultRecord, error)
	ListAlertResults(ctx context.Context, alertID string, from, to time.Time) ([]ResultRecord, error)
	CountResults(ctx context.Context) (int64, error)
	DeleteResultsBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// InsertResults persists one monitoring cycle's evaluations in a batch.
func (s *Store) InsertResults(ctx context.Context, results []ResultRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range results {
		var current interface{}
		if rec.CurrentPrice != nil {
			current = rec.CurrentPrice.String()
		}

		var errMsg interface{}
		if rec.Error != nil {
			errMsg = *rec.Error
		}

		batch.Queue(insertResultSQL,
			rec.AlertID,
			rec.ProductID,
			rec.Triggered,
			rec.Debounced,
			current,
			rec.TargetPrice.String(),
			errMsg,
			rec.CheckedAt,
		)
	}

	br := pool.SendBatch(ctx, batch)
	defer br.Close()

	for range results {
		if _, execErr := br.Exec(); execErr != nil {
			return fmt.Errorf("insert monitoring result: %w", execErr)
		}
	}
	return nil
}

// ListRecentResults lists the most recent evaluations, newest first.
func (s *Store) ListRecentResults(ctx context.Context, limit int) ([]ResultRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentResultsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent results: %w", queryErr)
	}
	defer rows.Close()

	return collectResults(rows, limit)
}

// ListResultsBetween lists evaluations within a time window, oldest first.
func (s *Store) ListResultsBetween(ctx context.Context, from, to time.Time) ([]ResultRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listResultsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list results between: %w", queryErr)
	}
	defer rows.Close()

	return collectResults(rows, 0)
}

// ListAlertResults lists one alert's evaluations within a time window.
func (s *Store) ListAlertResults(ctx context.Context, alertID string, from, to time.Time) ([]ResultRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertResultsSQL, alertID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list alert results: %w", queryErr)
	}
	defer rows.Close()

	return collectResults(rows, 0)
}

// CountResults counts stored evaluations.
func (s *Store) CountResults(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var count int64
	if scanErr := pool.QueryRow(ctx, countResultsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count results: %w", scanErr)
	}
	return count, nil
}

// DeleteResultsBefore removes old evaluations and reports how many went.
func (s *Store) DeleteResultsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	cmdTag, execErr := pool.Exec(ctx, deleteResultsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete results before: %w", execErr)
	}
	return cmdTag.RowsAffected(), nil
}

func collectResults(rows pgx.Rows, sizeHint int) ([]ResultRecord, error) {
	results := make([]ResultRecord, 0, sizeHint)
	for rows.Next() {
		rec, scanErr := scanResult(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		results = append(results, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return results, nil
}

func scanResult(rows pgx.Rows) (ResultRecord, error) {
	var (
		rec        ResultRecord
		currentStr sql.NullString
		targetStr  string
		errMsg     sql.NullString
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.AlertID,
		&rec.ProductID,
		&rec.Triggered,
		&rec.Debounced,
		&currentStr,
		&targetStr,
		&errMsg,
		&rec.CheckedAt,
		&rec.CreatedAt,
	); err != nil {
		return ResultRecord{}, err
	}

	target, err := decimal.NewFromString(targetStr)
	if err != nil {
		return ResultRecord{}, fmt.Errorf("parse target price: %w", err)
	}
	rec.TargetPrice = target

	if currentStr.Valid {
		current, convErr := decimal.NewFromString(currentStr.String)
		if convErr != nil {
			return ResultRecord{}, fmt.Errorf("parse current price: %w", convErr)
		}
		rec.CurrentPrice = &current
	}
	if errMsg.Valid {
		msg := errMsg.String
		rec.Error = &msg
	}

	return rec, nil
}

var _ ResultStore = (*Store)(nil)
