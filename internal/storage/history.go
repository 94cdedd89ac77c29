package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/wagnerlima/psytech-mcp/internal/models"
)

// ErrNotFound is returned when a consultation id is unknown.
var ErrNotFound = errors.New("consultation not found")

// HistoryStore keeps the consultations of one process in an in-memory
// SQLite database. Nothing is written to disk.
type HistoryStore struct {
	db *sql.DB
}

// OpenHistory creates an empty history database.
func OpenHistory() (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", historyDSN)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// Every new connection would get its own empty database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if _, err := db.Exec(HistorySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	if _, err := db.Exec(HistoryTriggers); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history triggers: %w", err)
	}
	return &HistoryStore{db: db}, nil
}

// Close releases the database; all history is discarded.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}

// Record stores a consultation and its diagnoses. A missing id or
// timestamp is filled in on c.
func (h *HistoryStore) Record(ctx context.Context, c *models.Consultation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	selected, err := json.Marshal(c.Selected)
	if err != nil {
		return fmt.Errorf("marshal selection: %w", err)
	}
	result, err := json.Marshal(c.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	labels, err := json.Marshal(c.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO consultations (id, session_id, selected, result, labels, passes, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SessionID, string(selected), string(result), string(labels), c.Result.Passes, c.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert consultation: %w", err)
	}

	for i, d := range c.Result.Diagnoses {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO consultation_diagnoses (id, consultation_id, position, rule_id, diagnosis_id, diagnosis_text, confidence) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), c.ID, i, d.RuleID, d.DiagnosisID, d.DiagnosisText, d.Confidence,
		)
		if err != nil {
			return fmt.Errorf("insert diagnosis %q: %w", d.DiagnosisID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get loads a consultation by id.
func (h *HistoryStore) Get(ctx context.Context, id string) (*models.Consultation, error) {
	row := h.db.QueryRowContext(ctx,
		`SELECT id, session_id, selected, result, labels, created_at FROM consultations WHERE id = ?`,
		id,
	)
	return scanConsultation(row)
}

// List returns up to limit consultations, newest first. An empty sessionID
// lists every session.
func (h *HistoryStore) List(ctx context.Context, sessionID string, limit int) ([]models.Consultation, error) {
	var rows *sql.Rows
	var err error

	if sessionID == "" {
		rows, err = h.db.QueryContext(ctx,
			`SELECT id, session_id, selected, result, labels, created_at FROM consultations ORDER BY created_at DESC, rowid DESC LIMIT ?`,
			limit,
		)
	} else {
		rows, err = h.db.QueryContext(ctx,
			`SELECT id, session_id, selected, result, labels, created_at FROM consultations WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
			sessionID, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	defer rows.Close()

	out := []models.Consultation{}
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Count returns the number of stored consultations.
func (h *HistoryStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM consultations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count consultations: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConsultation(s scanner) (*models.Consultation, error) {
	var (
		c                        models.Consultation
		selected, result, labels string
		createdAt                string
	)
	err := s.Scan(&c.ID, &c.SessionID, &selected, &result, &labels, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan consultation: %w", err)
	}

	if err := json.Unmarshal([]byte(selected), &c.Selected); err != nil {
		return nil, fmt.Errorf("decode selection: %w", err)
	}
	if err := json.Unmarshal([]byte(result), &c.Result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if err := json.Unmarshal([]byte(labels), &c.Labels); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &c, nil
}
