package memory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// ErrEmptyQuery is returned when a record would have an empty token set.
var ErrEmptyQuery = errors.New("query normalizes to an empty token set")

// Record is one remembered (query, plan, answer) triple.
// Immutable once written except for SuccessCount increments on reuse.
type Record struct {
	ID           string
	RawQuery     string
	Tokens       []string
	PlanCode     string
	Answer       string
	CreatedAt    time.Time
	SuccessCount int
}

// Match pairs the best stored record with its similarity score.
type Match struct {
	Record     *Record
	Similarity float64
}

// Store is the semantic memory cache. Records live in memory for
// scoring and are mirrored to SQLite for durability (append plus
// full-scan read on open). Appends are atomic with respect to
// concurrent lookups.
type Store struct {
	mu      sync.RWMutex
	records []*Record

	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// Open creates a memory store backed by SQLite at dbPath.
// An empty dbPath yields a purely in-memory store.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{dbPath: dbPath, logger: logger}
	if dbPath == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Memory store opened",
		zap.String("path", dbPath),
		zap.Int("records", len(s.records)))
	return s, nil
}

// initialize creates the database schema.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory_records (
		id TEXT PRIMARY KEY,
		raw_query TEXT NOT NULL,
		tokens TEXT NOT NULL,
		plan_code TEXT NOT NULL,
		answer TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		success_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_memory_records_created ON memory_records(created_at);

	CREATE TABLE IF NOT EXISTS run_audits (
		id TEXT PRIMARY KEY,
		raw_query TEXT NOT NULL,
		status TEXT NOT NULL,
		tool_calls INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		detail TEXT,
		created_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// loadAll performs the full-scan read, hydrating the in-memory index.
func (s *Store) loadAll() error {
	rows, err := s.db.Query(`
		SELECT id, raw_query, tokens, plan_code, answer, created_at, success_count
		FROM memory_records ORDER BY created_at ASC`)
	if err != nil {
		return fmt.Errorf("failed to scan records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec Record
		var tokensJSON string
		if err := rows.Scan(&rec.ID, &rec.RawQuery, &tokensJSON, &rec.PlanCode,
			&rec.Answer, &rec.CreatedAt, &rec.SuccessCount); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(tokensJSON), &rec.Tokens); err != nil {
			return fmt.Errorf("corrupt token set for record %s: %w", rec.ID, err)
		}
		s.records = append(s.records, &rec)
	}
	return rows.Err()
}

// Lookup returns the highest-similarity stored record for the query,
// or nil if the store is empty or the query has no usable tokens.
// Ties break toward the most recent record.
func (s *Store) Lookup(query string) *Match {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Record
	bestSim := -1.0
	for _, rec := range s.records {
		sim := Jaccard(tokens, rec.Tokens)
		// >= prefers later (more recent) records on ties
		if sim >= bestSim {
			best = rec
			bestSim = sim
		}
	}
	if best == nil {
		return nil
	}
	return &Match{Record: best, Similarity: bestSim}
}

// Append records a successful (query, plan, answer) triple.
// Callers must only append after a successful execution.
func (s *Store) Append(query, planCode, answer string) (*Record, error) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, ErrEmptyQuery
	}

	rec := &Record{
		ID:        uuid.NewString(),
		RawQuery:  query,
		Tokens:    tokens,
		PlanCode:  planCode,
		Answer:    answer,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		tokensJSON, err := json.Marshal(rec.Tokens)
		if err != nil {
			return nil, err
		}
		_, err = s.db.Exec(`
			INSERT INTO memory_records
			(id, raw_query, tokens, plan_code, answer, created_at, success_count)
			VALUES (?, ?, ?, ?, ?, ?, 0)`,
			rec.ID, rec.RawQuery, string(tokensJSON), rec.PlanCode, rec.Answer, rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to persist record: %w", err)
		}
	}

	s.records = append(s.records, rec)
	s.logger.Debug("Memory record appended",
		zap.String("id", rec.ID),
		zap.Int("tokens", len(rec.Tokens)))
	return rec, nil
}

// IncrementSuccess bumps the reuse counter for a fast-path hit.
func (s *Store) IncrementSuccess(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.ID == id {
			rec.SuccessCount++
			if s.db != nil {
				_, err := s.db.Exec(
					`UPDATE memory_records SET success_count = success_count + 1 WHERE id = ?`, id)
				return err
			}
			return nil
		}
	}
	return fmt.Errorf("memory record %s not found", id)
}

// All returns a snapshot of all records, oldest first.
func (s *Store) All() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes all records. Intended for the CLI and tests; the agent
// itself never evicts.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if _, err := s.db.Exec(`DELETE FROM memory_records`); err != nil {
			return err
		}
	}
	s.records = nil
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
