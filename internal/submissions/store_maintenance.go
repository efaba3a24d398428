package submissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats returns a count of submissions grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM submissions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("submission stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// PendingNotifications counts terminal submissions whose marker is still unset.
func (s *Store) PendingNotifications(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM submissions WHERE status IN (?, ?) AND notified_at IS NULL`,
		StatusApproved,
		StatusRejected,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unnotified submissions: %w", err)
	}
	return count, nil
}

// PruneChanges deletes change log rows recorded before the cutoff. Rows a
// saved feed cursor has not consumed yet are kept.
func (s *Store) PruneChanges(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM submission_changes
         WHERE changed_at < ?
           AND seq <= COALESCE((SELECT MIN(seq) FROM feed_cursors), seq)`,
		olderThan.UTC().Format("2006-01-02T15:04:05.000Z"),
	)
	if err != nil {
		return 0, fmt.Errorf("prune change log: %w", err)
	}
	return res.RowsAffected()
}

// CheckHealth returns diagnostic information about the submissions database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("submissions database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat submissions database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("submissions database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping submissions database: %w", err)
	}
	health.DatabaseReadable = true

	present := make(map[string]struct{})
	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("list tables: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			health.Error = err.Error()
			return health, fmt.Errorf("scan table name: %w", err)
		}
		present[name] = struct{}{}
	}
	rows.Close()
	for _, table := range requiredTables {
		if _, ok := present[table]; ok {
			health.TablesPresent = append(health.TablesPresent, table)
		} else {
			health.MissingTables = append(health.MissingTables, table)
		}
	}
	if len(health.MissingTables) > 0 {
		return health, nil
	}

	queries := []struct {
		query string
		dest  any
		label string
	}{
		{"PRAGMA user_version", &health.SchemaVersion, "schema version"},
		{"SELECT COUNT(1) FROM submissions", &health.TotalSubmissions, "count submissions"},
		{"SELECT COUNT(1) FROM submission_changes", &health.ChangeLogRows, "count changes"},
		{"SELECT COALESCE(MAX(seq), 0) FROM submission_changes", &health.LatestSeq, "latest change"},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(connCtx, q.query).Scan(q.dest); err != nil && !errors.Is(err, sql.ErrNoRows) {
			health.Error = err.Error()
			return health, fmt.Errorf("%s: %w", q.label, err)
		}
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
