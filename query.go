package pgward

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pgward/pgward/internal/safety"
)

// Query executes the full query pipeline and returns only QueryOutput.
// All errors (Postgres errors, safety gate rejections, Go errors) are
// converted to output.Error. The error message is then evaluated against
// guidance patterns — any matching guidance messages are appended.
// This means callers only need to check output.Error, never a Go error.
func (p *Pgward) Query(ctx context.Context, input QueryInput) *QueryOutput {
	startTime := time.Now()
	sql := input.SQL

	// 1. Acquire semaphore (respects context cancellation to prevent deadlock)
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return p.handleError(fmt.Errorf("failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", cap(p.semaphore), ctx.Err()))
	}
	defer func() { <-p.semaphore }()

	// 2. Check SQL length (before any processing — lexing, safety checks)
	if err := p.limits.CheckSQL(sql); err != nil {
		return p.handleError(err)
	}

	// 3. Safety gate. The database/schema guard runs second and applies even
	// in permissive mode.
	if d := safety.CheckSafety(sql, p.policy); !d.Allowed {
		return p.handleRejection(d)
	}
	if d := safety.CheckDatabaseContext(sql, p.policy); !d.Allowed {
		return p.handleRejection(d)
	}

	// 4. Determine timeout
	timeout, timeoutRule := p.limits.TimeoutFor(sql)
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 5. Acquire connection and execute
	conn, err := p.pool.Acquire(queryCtx)
	if err != nil {
		return p.handleError(err)
	}
	defer conn.Release()

	var result *QueryOutput
	if isFetchStatement(sql) {
		rows, err := conn.Query(queryCtx, sql)
		if err != nil {
			return p.handleError(err)
		}
		result, err = p.collectRows(rows)
		if err != nil {
			return p.handleError(err)
		}
	} else {
		// Non-fetch statements only reach the database in permissive mode.
		tag, err := conn.Exec(queryCtx, sql)
		if err != nil {
			return p.handleError(err)
		}
		result = &QueryOutput{Rows: []map[string]interface{}{}, RowsAffected: tag.RowsAffected()}
	}

	// 6. Apply redaction (per-field, recursive into JSONB/arrays)
	redacted := p.redactor.Active()
	result.Rows = p.redactor.Rows(result.Rows)

	// 7. Apply max result length truncation
	p.truncateIfNeeded(result)

	// 8. Log successful query execution with pipeline details
	logEvent := p.logger.Info().
		Str("sql", truncateForLog(sql, 200)).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(result.Rows)).
		Int64("rows_affected", result.RowsAffected)
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	if redacted {
		logEvent = logEvent.Bool("redacted", true)
	}
	logEvent.Msg("query executed")

	return result
}

// isFetchStatement reports whether the SQL should be run through the
// row-returning path. Everything else goes through Exec and reports
// rows_affected.
func isFetchStatement(sql string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "EXPLAIN", "VALUES", "TABLE"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// collectRows reads all rows from pgx.Rows and returns a QueryOutput.
func (p *Pgward) collectRows(rows pgx.Rows) (*QueryOutput, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	resultRows := make([]map[string]interface{}, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rowsAffected := rows.CommandTag().RowsAffected()

	return &QueryOutput{Columns: columns, Rows: resultRows, RowsAffected: rowsAffected}, nil
}

// convertValue converts a pgx-returned value to a JSON-friendly Go type.
func convertValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		if math.IsNaN(float64(val)) {
			return "NaN"
		}
		if math.IsInf(float64(val), 1) {
			return "Infinity"
		}
		if math.IsInf(float64(val), -1) {
			return "-Infinity"
		}
		return val
	case float64:
		if math.IsNaN(val) {
			return "NaN"
		}
		if math.IsInf(val, 1) {
			return "Infinity"
		}
		if math.IsInf(val, -1) {
			return "-Infinity"
		}
		return val
	case netip.Prefix:
		return val.String()
	case net.HardwareAddr:
		return val.String()
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN {
			return "NaN"
		}
		if val.InfinityModifier == pgtype.Infinity {
			return "Infinity"
		}
		if val.InfinityModifier == pgtype.NegativeInfinity {
			return "-Infinity"
		}
		b, err := val.MarshalJSON()
		if err != nil {
			return nil
		}
		return string(b)
	case pgtype.Interval:
		if !val.Valid {
			return nil
		}
		parts := []string{}
		if val.Months != 0 {
			years := val.Months / 12
			months := val.Months % 12
			if years != 0 {
				parts = append(parts, fmt.Sprintf("%d year(s)", years))
			}
			if months != 0 {
				parts = append(parts, fmt.Sprintf("%d mon(s)", months))
			}
		}
		if val.Days != 0 {
			parts = append(parts, fmt.Sprintf("%d day(s)", val.Days))
		}
		if val.Microseconds != 0 {
			dur := time.Duration(val.Microseconds) * time.Microsecond
			parts = append(parts, dur.String())
		}
		if len(parts) == 0 {
			return "0"
		}
		return strings.Join(parts, " ")
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		// bytea, xml — base64 encode
		return base64.StdEncoding.EncodeToString(val)
	case string:
		return val
	case map[string]interface{}:
		result := make(map[string]interface{}, len(val))
		for k, v := range val {
			result[k] = convertValue(v)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(val))
		for i, v := range val {
			result[i] = convertValue(v)
		}
		return result
	default:
		return val
	}
}

// handleRejection converts a safety gate rejection into a QueryOutput with
// error message. Rejections take the same guidance path as runtime errors.
func (p *Pgward) handleRejection(d safety.Decision) *QueryOutput {
	errMsg := p.diag.Render(d.Reason)
	patterns := p.diag.MatchedPatterns(errMsg)

	logEvent := p.logger.Warn().
		Str("kind", string(d.Reason.Kind)).
		Str("detail", d.Reason.Detail)
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("guidance", patterns)
	}
	logEvent.Msg("query rejected")

	return &QueryOutput{Error: p.diag.WithGuidance(errMsg)}
}

// handleError converts any error into a QueryOutput with error message.
// The error message is evaluated against guidance patterns — matching
// guidance messages are appended.
func (p *Pgward) handleError(err error) *QueryOutput {
	errMsg := err.Error()
	patterns := p.diag.MatchedPatterns(errMsg)

	logEvent := p.logger.Error().Err(err)
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("guidance", patterns)
	}
	logEvent.Msg("query error")

	return &QueryOutput{Error: p.diag.WithGuidance(errMsg)}
}

// truncateIfNeeded truncates query output rows if they exceed MaxResultLength (in characters).
func (p *Pgward) truncateIfNeeded(output *QueryOutput) {
	jsonBytes, _ := json.Marshal(output.Rows)
	truncated, did := p.limits.TruncateResult(string(jsonBytes))
	if !did {
		return
	}
	output.Rows = nil
	output.Error = truncated + "...[truncated] Result is too long! Add limits in your query!"
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
