// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store persists navigation sessions and their trails in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
	"github.com/relabs-tech/inertial_nav/internal/gps"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a session id does not exist.
var ErrNotFound = errors.New("store: not found")

// Session is one navigation run from start to stop.
type Session struct {
	ID            string     `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	StoppedAt     *time.Time `json:"stopped_at,omitempty"`
	Origin        r2.Vec     `json:"origin"`
	Heading       float64    `json:"heading"`
	Anchor        *gps.Fix   `json:"anchor,omitempty"`
	TotalDistance float64    `json:"total_distance"`
}

// Active reports whether the session has not been stopped.
func (s Session) Active() bool { return s.StoppedAt == nil }

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies all
// pending migrations. An empty path opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY and
	// keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	// m.Close would also close db, so it is left to the garbage collector.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("store: migrate: "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

func (s *Store) Close() error { return s.db.Close() }

// CreateSession records a new active session with a fresh id.
func (s *Store) CreateSession(ctx context.Context, origin r2.Vec, heading float64, anchor *gps.Fix, startedAt time.Time) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		StartedAt: startedAt.UTC().Truncate(time.Millisecond),
		Origin:    origin,
		Heading:   heading,
		Anchor:    anchor,
	}
	anchorJSON, err := encodeAnchor(anchor)
	if err != nil {
		return Session{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO nav_sessions (id, started_at, origin_x, origin_y, heading, anchor_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.StartedAt.UnixMilli(), origin.X, origin.Y, heading, anchorJSON)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// StopSession marks a session stopped and records its final distance.
func (s *Store) StopSession(ctx context.Context, id string, stoppedAt time.Time, distance float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE nav_sessions SET stopped_at = ?, total_distance = ? WHERE id = ?`,
		stoppedAt.UTC().UnixMilli(), distance, id)
	if err != nil {
		return fmt.Errorf("stop session %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

// SetAnchor attaches a GPS fix to a session.
func (s *Store) SetAnchor(ctx context.Context, id string, fix gps.Fix) error {
	anchorJSON, err := encodeAnchor(&fix)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE nav_sessions SET anchor_json = ? WHERE id = ?`, anchorJSON, id)
	if err != nil {
		return fmt.Errorf("set anchor %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

// AppendTrailPoint stores one trail point under a per-session sequence.
func (s *Store) AppendTrailPoint(ctx context.Context, id string, seq int, p deadreckoning.TrailPoint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trail_points (session_id, seq, x, y, heading, speed, ts) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, seq, p.X, p.Y, p.Heading, p.Speed, p.Timestamp)
	if err != nil {
		return fmt.Errorf("append trail point %s/%d: %w", id, seq, err)
	}
	return nil
}

// TrailPoints returns a session's stored trail oldest first, downsampled to
// at most limit points (limit <= 0 returns all).
func (s *Store) TrailPoints(ctx context.Context, id string, limit int) ([]deadreckoning.TrailPoint, error) {
	if _, err := s.Session(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT x, y, heading, speed, ts FROM trail_points WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query trail %s: %w", id, err)
	}
	defer rows.Close()

	var points []deadreckoning.TrailPoint
	for rows.Next() {
		var p deadreckoning.TrailPoint
		if err := rows.Scan(&p.X, &p.Y, &p.Heading, &p.Speed, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan trail point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trail %s: %w", id, err)
	}
	return deadreckoning.Downsample(points, limit), nil
}

const sessionColumns = `id, started_at, stopped_at, origin_x, origin_y, heading, anchor_json, total_distance`

// Session loads one session by id.
func (s *Store) Session(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM nav_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess, err
}

// Sessions lists all sessions, newest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM nav_sessions ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var (
		sess       Session
		startedMs  int64
		stoppedMs  sql.NullInt64
		anchorJSON sql.NullString
	)
	err := sc.Scan(&sess.ID, &startedMs, &stoppedMs, &sess.Origin.X, &sess.Origin.Y,
		&sess.Heading, &anchorJSON, &sess.TotalDistance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.StartedAt = time.UnixMilli(startedMs).UTC()
	if stoppedMs.Valid {
		t := time.UnixMilli(stoppedMs.Int64).UTC()
		sess.StoppedAt = &t
	}
	if anchorJSON.Valid && anchorJSON.String != "" {
		var fix gps.Fix
		if err := json.Unmarshal([]byte(anchorJSON.String), &fix); err != nil {
			return Session{}, fmt.Errorf("decode anchor of %s: %w", sess.ID, err)
		}
		sess.Anchor = &fix
	}
	return sess, nil
}

func encodeAnchor(fix *gps.Fix) (sql.NullString, error) {
	if fix == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(fix)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode anchor: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}
