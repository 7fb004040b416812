package pgward

import (
	"context"
	"fmt"
	"time"
)

const listDatabasesSQL = `
SELECT datname
FROM pg_catalog.pg_database
WHERE datistemplate = false
ORDER BY datname;
`

// ListDatabases returns all non-template databases on the server. The entry
// matching the configured database is marked Current — it is the only one
// queries may touch. Does NOT go through the safety gate pipeline.
func (p *Pgward) ListDatabases(ctx context.Context, input ListDatabasesInput) (*ListDatabasesOutput, error) {
	startTime := time.Now()

	// 1. Acquire semaphore
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("ListDatabases: failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", cap(p.semaphore), ctx.Err())
	}
	defer func() { <-p.semaphore }()

	// 2. Apply configurable timeout
	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.Query.ListDatabasesTimeoutSeconds)*time.Second)
	defer cancel()

	// 3. Acquire connection and execute
	conn, err := p.pool.Acquire(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(queryCtx, listDatabasesSQL)
	if err != nil {
		return nil, fmt.Errorf("ListDatabases query failed: %w", err)
	}
	defer rows.Close()

	var databases []DatabaseEntry
	for rows.Next() {
		var entry DatabaseEntry
		if err := rows.Scan(&entry.Name); err != nil {
			return nil, fmt.Errorf("ListDatabases scan failed: %w", err)
		}
		entry.Current = entry.Name == p.policy.Database
		databases = append(databases, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListDatabases rows error: %w", err)
	}

	if databases == nil {
		databases = []DatabaseEntry{}
	}

	p.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("database_count", len(databases)).
		Msg("ListDatabases executed")

	return &ListDatabasesOutput{Databases: databases}, nil
}
