package dispatch

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

// UsageStore mirrors per-request usage into SQLite for the `usage`/`info`
// CLI commands and server-side reporting, grounded on original_source's
// crates/server/src/usage/stats.rs schema (tool_usage + daily_stats tables).
// The in-memory counters on Manager remain the source of truth for
// rotation decisions; this store only ever accumulates.
type UsageStore struct {
	db *sql.DB
}

// OpenUsageStore wraps an already-migrated *sql.DB (see internal/store's
// golang-migrate setup) for usage writes.
func OpenUsageStore(db *sql.DB) *UsageStore {
	return &UsageStore{db: db}
}

// RecordRequest upserts a single request's outcome into both tool_usage and
// the day's daily_stats row.
func (s *UsageStore) RecordRequest(tool protocol.Tool, success bool) {
	if s == nil || s.db == nil {
		return
	}
	now := time.Now().UTC()
	date := now.Format("2006-01-02")

	_, err := s.db.Exec(
		`INSERT INTO tool_usage (tool, timestamp, request_type, success) VALUES (?, ?, ?, ?)`,
		string(tool), now.Unix(), "prompt", success,
	)
	if err != nil {
		return // best-effort mirror; rotation correctness never depends on it
	}

	errInc := 0
	if !success {
		errInc = 1
	}
	s.upsertDaily(date, tool, 1, 0, errInc, 0)
}

// RecordRateLimit increments the day's rate_limit_hits counter.
func (s *UsageStore) RecordRateLimit(tool protocol.Tool) {
	if s == nil || s.db == nil {
		return
	}
	date := time.Now().UTC().Format("2006-01-02")
	s.upsertDaily(date, tool, 0, 0, 0, 1)
}

func (s *UsageStore) upsertDaily(date string, tool protocol.Tool, requests, tokens, errs, rateLimits int) {
	_, _ = s.db.Exec(`
		INSERT INTO daily_stats (date, tool, total_requests, total_tokens, total_errors, rate_limit_hits)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, tool) DO UPDATE SET
			total_requests = total_requests + excluded.total_requests,
			total_tokens = total_tokens + excluded.total_tokens,
			total_errors = total_errors + excluded.total_errors,
			rate_limit_hits = rate_limit_hits + excluded.rate_limit_hits
	`, date, string(tool), requests, tokens, errs, rateLimits)
}

// DailyStat is one (date, tool) row from daily_stats.
type DailyStat struct {
	Date           string
	Tool           protocol.Tool
	TotalRequests  int64
	TotalTokens    int64
	TotalErrors    int64
	RateLimitHits  int64
}

// GetDailyStats returns every daily_stats row on or after since.
func (s *UsageStore) GetDailyStats(since time.Time) ([]DailyStat, error) {
	rows, err := s.db.Query(
		`SELECT date, tool, total_requests, total_tokens, total_errors, rate_limit_hits
		 FROM daily_stats WHERE date >= ? ORDER BY date, tool`,
		since.UTC().Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("dispatch: query daily stats: %w", err)
	}
	defer rows.Close()

	var out []DailyStat
	for rows.Next() {
		var d DailyStat
		var tool string
		if err := rows.Scan(&d.Date, &tool, &d.TotalRequests, &d.TotalTokens, &d.TotalErrors, &d.RateLimitHits); err != nil {
			return nil, fmt.Errorf("dispatch: scan daily stat: %w", err)
		}
		d.Tool = protocol.Tool(tool)
		out = append(out, d)
	}
	return out, rows.Err()
}
