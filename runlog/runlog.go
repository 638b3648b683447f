// Package runlog records training progress: console lines, a CSV log and a
// SQLite history of runs.
package runlog

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/manningwu07/commandGPT/params"
)

// Eval is one periodic evaluation of a run.
type Eval struct {
	Step      int
	TrainLoss float64
	ValLoss   float64
	Elapsed   time.Duration
}

// Sink receives every evaluation.
type Sink interface {
	Record(Eval) error
}

// Console prints evaluations as progress lines.
type Console struct {
	W io.Writer
}

func (c Console) Record(e Eval) error {
	_, err := fmt.Fprintf(c.W, "Step %d: train_loss = %.4f, val_loss = %.4f\n", e.Step, e.TrainLoss, e.ValLoss)
	return err
}

// ---------- CSV ----------

// CSVLog appends evaluations to a CSV file with header step,train_loss,val_loss,elapsed.
type CSVLog struct {
	f *os.File
	w *csv.Writer
}

func NewCSVLog(path string) (*CSVLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"step", "train_loss", "val_loss", "elapsed"}); err != nil {
		f.Close()
		return nil, err
	}
	return &CSVLog{f: f, w: w}, nil
}

func (l *CSVLog) Record(e Eval) error {
	row := []string{
		strconv.Itoa(e.Step),
		strconv.FormatFloat(e.TrainLoss, 'f', 6, 64),
		strconv.FormatFloat(e.ValLoss, 'f', 6, 64),
		e.Elapsed.Round(time.Millisecond).String(),
	}
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

func (l *CSVLog) Close() error {
	l.w.Flush()
	return errors.Join(l.w.Error(), l.f.Close())
}

// ---------- SQLite ----------

// Run is one row of the runs table.
type Run struct {
	ID        string
	Started   time.Time
	Config    params.Config
	VocabSize int
	NumParams int
	Finished  bool
}

// Store keeps every run and its evaluations in a SQLite database.
// Record writes to the run opened by the last StartRun.
type Store struct {
	db    *sql.DB
	RunID string
}

func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs(
			id TEXT PRIMARY KEY,
			started INTEGER NOT NULL,
			config TEXT NOT NULL,
			vocab_size INTEGER NOT NULL,
			n_params INTEGER NOT NULL,
			finished INTEGER NOT NULL DEFAULT 0
		)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS evals(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			step INTEGER NOT NULL,
			train_loss REAL NOT NULL,
			val_loss REAL NOT NULL,
			elapsed_ms INTEGER NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// StartRun inserts a new run and makes it the current one.
func (s *Store) StartRun(cfg params.Config, vocabSize, numParams int) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	_, err = s.db.Exec("INSERT INTO runs(id, started, config, vocab_size, n_params) VALUES(?,?,?,?,?)",
		id, time.Now().UnixMilli(), string(raw), vocabSize, numParams)
	if err != nil {
		return "", fmt.Errorf("runlog: start run: %w", err)
	}
	s.RunID = id
	return id, nil
}

func (s *Store) Record(e Eval) error {
	if s.RunID == "" {
		return errors.New("runlog: no run started")
	}
	_, err := s.db.Exec("INSERT INTO evals(run_id, step, train_loss, val_loss, elapsed_ms) VALUES(?,?,?,?,?)",
		s.RunID, e.Step, e.TrainLoss, e.ValLoss, e.Elapsed.Milliseconds())
	return err
}

// FinishRun marks the current run as completed.
func (s *Store) FinishRun() error {
	_, err := s.db.Exec("UPDATE runs SET finished = 1 WHERE id = ?", s.RunID)
	return err
}

// Runs lists every run, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query("SELECT id, started, config, vocab_size, n_params, finished FROM runs ORDER BY started, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			started int64
			cfg     string
			done    int
		)
		if err := rows.Scan(&r.ID, &started, &cfg, &r.VocabSize, &r.NumParams, &done); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(cfg), &r.Config); err != nil {
			return nil, fmt.Errorf("runlog: run %s config: %w", r.ID, err)
		}
		r.Started = time.UnixMilli(started)
		r.Finished = done != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Evals returns the evaluations of one run in step order.
func (s *Store) Evals(runID string) ([]Eval, error) {
	rows, err := s.db.Query("SELECT step, train_loss, val_loss, elapsed_ms FROM evals WHERE run_id = ? ORDER BY step", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Eval
	for rows.Next() {
		var (
			e  Eval
			ms int64
		)
		if err := rows.Scan(&e.Step, &e.TrainLoss, &e.ValLoss, &ms); err != nil {
			return nil, err
		}
		e.Elapsed = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }

// Multi fans one evaluation out to several sinks and joins their errors.
type Multi []Sink

func (m Multi) Record(e Eval) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		errs = append(errs, s.Record(e))
	}
	return errors.Join(errs...)
}
