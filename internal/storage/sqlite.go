// Package storage grava as análises e seus ciclos num banco SQLite local.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"

	// driver SQLite
	_ "github.com/mattn/go-sqlite3"

	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/internal/models"
	"tanalyzer_go/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	file        TEXT NOT NULL,
	status      TEXT NOT NULL,
	lines       INTEGER NOT NULL,
	cycles      INTEGER NOT NULL,
	discarded   INTEGER NOT NULL,
	output_path TEXT,
	error       TEXT,
	started_at  INTEGER NOT NULL,
	elapsed_ms  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cycles (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	idx     INTEGER NOT NULL,
	min     REAL,
	max     REAL,
	samples INTEGER NOT NULL,
	PRIMARY KEY (run_id, idx)
);`

// Recorder grava análises concluídas no SQLite
type Recorder struct {
	*sql.DB

	path  string
	mutex sync.Mutex
}

// Open abre (ou cria) o banco em path e garante o esquema
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir banco %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao criar tabelas em %s: %w", path, err)
	}

	logger.Infof("Banco de dados para gravação: %s", path)
	return &Recorder{DB: db, path: path}, nil
}

// Name identifica o destino nos logs
func (r *Recorder) Name() string {
	return "sqlite"
}

// Path caminho do arquivo do banco
func (r *Recorder) Path() string {
	return r.path
}

// Record grava a análise e todos os ciclos numa transação
func (r *Recorder) Record(ctx context.Context, run *models.Run, ds *cycle.Dataset) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	tx, err := r.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.File, string(run.Status), run.Lines, run.Cycles, run.Discarded,
		run.OutputPath, run.Error, run.StartedAt.UnixMilli(), run.ElapsedMs)
	if err != nil {
		return fmt.Errorf("erro ao gravar análise %s: %w", run.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cycles WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("erro ao limpar ciclos de %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cycles VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("erro ao preparar inserção: %w", err)
	}
	defer stmt.Close()

	for _, entry := range ds.Entries() {
		min, max := nullable(entry.Extremum.Min), nullable(entry.Extremum.Max)
		if entry.Extremum.IsEmpty() {
			min, max = sql.NullFloat64{}, sql.NullFloat64{}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, entry.Index, min, max, entry.Samples); err != nil {
			return fmt.Errorf("erro ao gravar ciclo %d: %w", entry.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("erro ao confirmar transação: %w", err)
	}
	return nil
}

// ListCycles lê os ciclos de uma análise em ordem de índice
func (r *Recorder) ListCycles(ctx context.Context, runID string) (*cycle.Dataset, error) {
	rows, err := r.QueryContext(ctx,
		`SELECT idx, min, max, samples FROM cycles WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("erro ao consultar ciclos: %w", err)
	}
	defer rows.Close()

	ds := cycle.NewDataset()
	for rows.Next() {
		var (
			entry    cycle.Entry
			min, max sql.NullFloat64
		)
		if err := rows.Scan(&entry.Index, &min, &max, &entry.Samples); err != nil {
			return nil, fmt.Errorf("erro ao ler ciclo: %w", err)
		}

		entry.Extremum = cycle.NewExtremum()
		if min.Valid && max.Valid {
			entry.Extremum = cycle.Extremum{Min: float32(min.Float64), Max: float32(max.Float64)}
		}
		if err := ds.Insert(entry); err != nil {
			return nil, err
		}
	}
	return ds, rows.Err()
}

// CountRuns quantidade de análises gravadas
func (r *Recorder) CountRuns(ctx context.Context) (int, error) {
	var n int
	if err := r.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("erro ao contar análises: %w", err)
	}
	return n, nil
}

// nullable converte para REAL; NaN vira NULL
func nullable(v float32) sql.NullFloat64 {
	f := float64(v)
	if math.IsNaN(f) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
