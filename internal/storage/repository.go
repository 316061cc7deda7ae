package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository struct {
	Store *Store
}

func NewRepository(store *Store) *Repository {
	return &Repository{Store: store}
}

// ReplaceFindings swaps the untreated findings of one record for the given set.
// A re-saved record therefore never leaves stale findings behind.
func (r *Repository) ReplaceFindings(ctx context.Context, table, recordKey string, findings []Finding) error {
	tx, err := r.Store.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM findings WHERE table_name=$1 AND record_key=$2 AND treated=false`, table, recordKey); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, f := range findings {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if f.RecordedAt.IsZero() {
			f.RecordedAt = time.Now().UTC()
		}
		batch.Queue(`
			INSERT INTO findings (id, recorded_at, table_name, record_key, subject, observed_value, status, recommendation, operator, treated)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			f.ID, f.RecordedAt, table, recordKey, f.Subject, f.Value, f.Status, f.Recommendation, f.Operator, f.Treated,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) ListFindings(ctx context.Context, filter FindingFilter) ([]Finding, error) {
	query, args := findingsQuery(filter)
	rows, err := r.Store.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []Finding{}
	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.ID, &f.RecordedAt, &f.TableName, &f.RecordKey, &f.Subject, &f.Value, &f.Status, &f.Recommendation, &f.Operator, &f.Treated); err != nil {
			return nil, err
		}
		results = append(results, f)
	}
	return results, rows.Err()
}

func (r *Repository) SetTreated(ctx context.Context, id string, treated bool) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := r.Store.Pool.Exec(ctx, `UPDATE findings SET treated=$1 WHERE id=$2`, treated, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func findingsQuery(filter FindingFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status=$%d", filter.Status)
	}
	if filter.Table != "" {
		add("table_name=$%d", filter.Table)
	}
	if filter.Treated != nil {
		add("treated=$%d", *filter.Treated)
	}
	var b strings.Builder
	b.WriteString(`SELECT id, recorded_at, table_name, record_key, subject, observed_value, status, recommendation, operator, treated FROM findings`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY recorded_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}
