package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"scrapscii/internal/shard"
	"scrapscii/internal/stats"
)

const runColumns = "id, source, status, start_offset, cursor_position, start_index, stats_json, error_message, started_at, updated_at, finished_at"

// BeginRun records a new running run. Runs left in the running state by a
// crashed process are marked interrupted first; the dataset lock guarantees
// only one live writer.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id required")
	}
	now := time.Now()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	payload, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	if _, err := s.exec(ctx,
		`UPDATE runs SET status = ?, updated_at = ?, error_message = COALESCE(error_message, 'abandoned')
		 WHERE status = ?`,
		string(StatusInterrupted), formatTime(now), string(StatusRunning),
	); err != nil {
		return fmt.Errorf("mark abandoned runs: %w", err)
	}

	if _, err := s.exec(ctx,
		`INSERT INTO runs (id, source, status, start_offset, cursor_position, start_index, stats_json, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, string(StatusRunning), run.StartOffset, run.StartOffset, run.StartIndex,
		string(payload), formatTime(run.StartedAt), formatTime(now),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordShard records a shard persisted by runID.
func (s *Store) RecordShard(ctx context.Context, runID string, sh shard.Shard) error {
	if _, err := s.exec(ctx,
		`INSERT INTO shards (shard_index, run_id, path, row_count, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sh.Index, runID, sh.Path, sh.Rows, sh.Size, formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("record shard %d: %w", sh.Index, err)
	}
	return nil
}

// Checkpoint stores how far runID got into source along with its stats.
func (s *Store) Checkpoint(ctx context.Context, runID, source string, offset int64, snapshot stats.Stats) error {
	ctx = ensureContext(ctx)
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	now := formatTime(time.Now())

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin checkpoint: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx,
			`UPDATE runs SET cursor_position = ?, stats_json = ?, updated_at = ? WHERE id = ?`,
			offset, string(payload), now, runID)
		if err != nil {
			return fmt.Errorf("update run cursor: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("checkpoint: unknown run %q", runID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cursors (source, position, run_id, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(source) DO UPDATE SET position = excluded.position, run_id = excluded.run_id, updated_at = excluded.updated_at`,
			source, offset, runID, now); err != nil {
			return fmt.Errorf("update source cursor: %w", err)
		}
		return tx.Commit()
	})
}

// FinishRun closes runID with a final status and stats.
func (s *Store) FinishRun(ctx context.Context, runID string, status Status, snapshot stats.Stats, runErr error) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	var message sql.NullString
	if runErr != nil {
		message = sql.NullString{String: runErr.Error(), Valid: true}
	}
	now := formatTime(time.Now())
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, stats_json = ?, error_message = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		string(status), string(payload), message, now, now, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %q", runID)
	}
	return nil
}

// Resume returns the stored cursor for source and the first free shard index.
func (s *Store) Resume(ctx context.Context, source string) (ResumePoint, error) {
	ctx = ensureContext(ctx)
	var point ResumePoint

	var position sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT position FROM cursors WHERE source = ?", source).Scan(&position)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return point, fmt.Errorf("read cursor: %w", err)
	}
	point.Offset = position.Int64

	var maxIndex sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(shard_index) FROM shards").Scan(&maxIndex); err != nil {
		return point, fmt.Errorf("read shard index: %w", err)
	}
	if maxIndex.Valid {
		point.NextIndex = int(maxIndex.Int64) + 1
	}
	return point, nil
}

// Runs returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Run returns a single run by id, or nil when unknown.
func (s *Store) Run(ctx context.Context, id string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Shards returns every recorded shard ordered by index.
func (s *Store) Shards(ctx context.Context) ([]ShardEntry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT shard_index, run_id, path, row_count, size_bytes, created_at FROM shards ORDER BY shard_index")
	if err != nil {
		return nil, fmt.Errorf("list shards: %w", err)
	}
	defer rows.Close()

	var shards []ShardEntry
	for rows.Next() {
		var (
			entry   ShardEntry
			created sql.NullString
		)
		if err := rows.Scan(&entry.Index, &entry.RunID, &entry.Path, &entry.Rows, &entry.Size, &created); err != nil {
			return nil, fmt.Errorf("scan shard: %w", err)
		}
		entry.CreatedAt = parseTime(created)
		shards = append(shards, entry)
	}
	return shards, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run       Run
		status    string
		statsJSON sql.NullString
		message   sql.NullString
		started   sql.NullString
		updated   sql.NullString
		finished  sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Source,
		&status,
		&run.StartOffset,
		&run.Cursor,
		&run.StartIndex,
		&statsJSON,
		&message,
		&started,
		&updated,
		&finished,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = Status(status)
	run.Error = message.String
	run.StartedAt = parseTime(started)
	run.UpdatedAt = parseTime(updated)
	run.FinishedAt = parseTime(finished)
	if statsJSON.Valid && statsJSON.String != "" {
		if err := json.Unmarshal([]byte(statsJSON.String), &run.Stats); err != nil {
			return Run{}, fmt.Errorf("decode run stats: %w", err)
		}
	}
	return run, nil
}
