package metrics

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"meal-board/internal/llm"
)

const timestampLayout = "2006-01-02 15:04:05"

// ExecutionMetric records metadata for a single agent execution.
type ExecutionMetric struct {
	AgentName        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Timestamp        time.Time
}

// ExportMetric records one finished board export.
type ExportMetric struct {
	ChatID    int64
	Filename  string
	Lang      string
	Dishes    int
	Bytes     int
	Width     int
	Height    int
	LatencyMS int64
	Timestamp time.Time
}

// Store handles persistence of metrics to SQLite. The database is owned by
// the caller.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timestampLayout)
}

// Record saves an execution metric to the database.
func (s *Store) Record(m ExecutionMetric) error {
	_, err := s.db.Exec(`
		INSERT INTO execution_metrics (agent_name, model, prompt_tokens, completion_tokens, latency_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.AgentName, m.Model, m.PromptTokens, m.CompletionTokens, m.LatencyMS, stamp(m.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to record execution metric: %w", err)
	}
	return nil
}

// RecordMeta records metrics directly from llm.AgentMeta. Executions that
// used no tokens (cache hits) are not recorded.
func (s *Store) RecordMeta(meta llm.AgentMeta) error {
	if meta.Usage.PromptTokens == 0 && meta.Usage.CompletionTokens == 0 {
		return nil
	}
	return s.Record(MapUsage(meta.AgentName, meta.Usage, meta.Latency))
}

// RecordExport saves an export metric to the database.
func (s *Store) RecordExport(m ExportMetric) error {
	_, err := s.db.Exec(`
		INSERT INTO exports (chat_id, filename, lang, dishes, bytes, width, height, latency_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ChatID, m.Filename, m.Lang, m.Dishes, m.Bytes, m.Width, m.Height, m.LatencyMS, stamp(m.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to record export metric: %w", err)
	}
	return nil
}

// DailyUsage represents totals for a single day.
type DailyUsage struct {
	Date            string
	TotalPrompt     int
	TotalCompletion int
	TotalExecution  int
	Exports         int
	ExportBytes     int64
}

// GetDailyUsage retrieves usage for the last N days, newest first.
func (s *Store) GetDailyUsage(days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(timestampLayout)
	byDay := make(map[string]*DailyUsage)
	day := func(d string) *DailyUsage {
		u, ok := byDay[d]
		if !ok {
			u = &DailyUsage{Date: d}
			byDay[d] = u
		}
		return u
	}

	if err := s.executionUsage(since, day); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT date(timestamp), COUNT(*), COALESCE(SUM(bytes), 0)
		FROM exports
		WHERE timestamp >= ?
		GROUP BY date(timestamp)`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query export usage: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d string
		var count int
		var size int64
		if err := rows.Scan(&d, &count, &size); err != nil {
			return nil, err
		}
		u := day(d)
		u.Exports, u.ExportBytes = count, size
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]DailyUsage, 0, len(byDay))
	for _, u := range byDay {
		results = append(results, *u)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Date > results[j].Date })
	return results, nil
}

func (s *Store) executionUsage(since string, day func(string) *DailyUsage) error {
	rows, err := s.db.Query(`
		SELECT date(timestamp), COUNT(*), COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0)
		FROM execution_metrics
		WHERE timestamp >= ?
		GROUP BY date(timestamp)`, since)
	if err != nil {
		return fmt.Errorf("failed to query execution usage: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d string
		var count, prompt, completion int
		if err := rows.Scan(&d, &count, &prompt, &completion); err != nil {
			return err
		}
		u := day(d)
		u.TotalExecution, u.TotalPrompt, u.TotalCompletion = count, prompt, completion
	}
	return rows.Err()
}

// Cleanup removes records older than the specified number of days and
// returns how many rows were deleted.
func (s *Store) Cleanup(olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(timestampLayout)
	var total int64
	for _, table := range []string{"execution_metrics", "exports"} {
		res, err := s.db.Exec("DELETE FROM "+table+" WHERE timestamp < ?", threshold)
		if err != nil {
			return total, fmt.Errorf("failed to clean up %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// MapUsage helper to convert llm.TokenUsage to ExecutionMetric.
func MapUsage(agentName string, usage llm.TokenUsage, latency time.Duration) ExecutionMetric {
	return ExecutionMetric{
		AgentName:        agentName,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
		Timestamp:        time.Now().UTC(),
	}
}
