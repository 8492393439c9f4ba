package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"inventorycounter/internal/model"
)

// EvidenceRepository implements repository.EvidenceRepository for SQLite.
type EvidenceRepository struct {
	db *DB
}

// NewEvidenceRepository creates a new SQLite evidence repository.
func NewEvidenceRepository(db *DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// Insert adds an evidence record and its labels in one transaction.
func (r *EvidenceRepository) Insert(ctx context.Context, ev *model.Evidence) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO evidence (session_id, filename, filepath, filesize, captured_at)
		VALUES (?, ?, ?, ?, ?)
	`, ev.SessionID, ev.Filename, ev.FilePath, ev.FileSize, ev.CapturedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert evidence: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get evidence id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO evidence_labels (evidence_id, position, label) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, label := range ev.Labels {
		if _, err := stmt.ExecContext(ctx, id, i, label); err != nil {
			return 0, fmt.Errorf("failed to insert label: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	ev.ID = id
	return id, nil
}

// GetByID retrieves one evidence record with its labels, nil when missing.
func (r *EvidenceRepository) GetByID(ctx context.Context, id int64) (*model.Evidence, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var ev model.Evidence
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, session_id, filename, filepath, filesize, captured_at
		FROM evidence WHERE id = ?
	`, id).Scan(&ev.ID, &ev.SessionID, &ev.Filename, &ev.FilePath, &ev.FileSize, &ev.CapturedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evidence: %w", err)
	}

	labels, err := r.labels(ctx, []int64{ev.ID})
	if err != nil {
		return nil, err
	}
	ev.Labels = labels[ev.ID]
	return &ev, nil
}

// GetAll retrieves evidence matching filter, newest first.
func (r *EvidenceRepository) GetAll(ctx context.Context, filter model.EvidenceFilter) ([]model.Evidence, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT DISTINCT e.id, e.session_id, e.filename, e.filepath, e.filesize, e.captured_at
		FROM evidence e
		LEFT JOIN evidence_labels l ON e.id = l.evidence_id
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.SessionID != "" {
		query += " AND e.session_id = ?"
		args = append(args, filter.SessionID)
	}

	if filter.Label != "" {
		query += " AND l.label = ?"
		args = append(args, filter.Label)
	}

	query += " ORDER BY e.captured_at DESC, e.id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}

	var (
		evidence []model.Evidence
		ids      []int64
	)
	for rows.Next() {
		var ev model.Evidence
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Filename, &ev.FilePath, &ev.FileSize, &ev.CapturedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		evidence = append(evidence, ev)
		ids = append(ids, ev.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evidence: %w", err)
	}

	labels, err := r.labels(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range evidence {
		evidence[i].Labels = labels[evidence[i].ID]
	}
	return evidence, nil
}

// labels loads the labels of ids in position order. Callers hold the read lock.
func (r *EvidenceRepository) labels(ctx context.Context, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := "SELECT evidence_id, label FROM evidence_labels WHERE evidence_id IN (?" + strings.Repeat(",?", len(ids)-1) + ") ORDER BY evidence_id, position"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			label string
		)
		if err := rows.Scan(&id, &label); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		out[id] = append(out[id], label)
	}
	return out, rows.Err()
}
