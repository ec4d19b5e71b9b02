// Package sqldb is the relational storage backend. The same queries run on
// SQLite (modernc.org/sqlite) and PostgreSQL (lib/pq); sqlx rebinds the
// placeholders for each driver.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/storage"
	"github.com/mcoot/boulder/internal/storage/sqldb/migrations"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds database connection settings
type Config struct {
	// Driver is DriverSQLite or DriverPostgres
	Driver string
	// DSN is a file path (or ":memory:") for SQLite, a connection string for PostgreSQL
	DSN string
	// MaxOpenConns caps the pool; SQLite always uses a single connection
	MaxOpenConns int
}

// Storage is a SQL-backed implementation of the storage interface
type Storage struct {
	db *sqlx.DB
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Open connects to the database and applies the bundled migrations
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	var dsn string
	switch cfg.Driver {
	case DriverSQLite:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, errors.New("sqlite path is required")
		}
		dsn = sqliteDSN(cfg.DSN)
	case DriverPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, errors.New("postgres dsn is required")
		}
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverSQLite {
		// One writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", cfg.Driver, err)
	}

	if err := ApplyMigrations(ctx, db, migrations.FS, cfg.Driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Storage{db: db}, nil
}

// NewWithDB wraps an existing, already migrated connection (for testing)
func NewWithDB(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// Close releases the underlying database
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func sqliteDSN(path string) string {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	return dsn
}

// playerRow mirrors the players table
type playerRow struct {
	ID             string         `db:"id"`
	Height         int            `db:"height"`
	Streak         int            `db:"streak"`
	LastPlayedDate sql.NullString `db:"last_played_date"`
	TotalPushes    int            `db:"total_pushes"`
	MaxHeight      int            `db:"max_height"`
	DeathCount     int            `db:"death_count"`
	Version        int64          `db:"version"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r playerRow) toModel() *model.Player {
	return &model.Player{
		ID:             model.PlayerID(r.ID),
		Height:         r.Height,
		Streak:         r.Streak,
		LastPlayedDate: r.LastPlayedDate.String,
		TotalPushes:    r.TotalPushes,
		MaxHeight:      r.MaxHeight,
		DeathCount:     r.DeathCount,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func nullDate(date string) sql.NullString {
	return sql.NullString{String: date, Valid: date != ""}
}

const playerColumns = `id, height, streak, last_played_date, total_pushes, max_height, death_count, version, created_at, updated_at`

const deathColumns = `id, player_id, height_lost, streak_lost, days_missed, last_played_date, created_at`

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	query := s.db.Rebind(`
		INSERT INTO players (` + playerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		string(player.ID), player.Height, player.Streak, nullDate(player.LastPlayedDate),
		player.TotalPushes, player.MaxHeight, player.DeathCount, player.Version,
		player.CreatedAt.UTC(), player.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrPlayerExists
		}
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return getPlayer(ctx, s.db, id)
}

// Push ledger operations

func (s *Storage) HasPush(ctx context.Context, id model.PlayerID, playDate string) (bool, error) {
	return hasPush(ctx, s.db, id, playDate)
}

func (s *Storage) ListPushes(ctx context.Context, id model.PlayerID) ([]*model.PushEvent, error) {
	var pushes []*model.PushEvent
	query := s.db.Rebind(`
		SELECT player_id, play_date, height_after, streak_at_time, created_at
		FROM pushes WHERE player_id = ? ORDER BY play_date`)
	if err := s.db.SelectContext(ctx, &pushes, query, string(id)); err != nil {
		return nil, fmt.Errorf("list pushes: %w", err)
	}
	for _, p := range pushes {
		p.CreatedAt = p.CreatedAt.UTC()
	}
	return pushes, nil
}

func (s *Storage) CommitPush(ctx context.Context, player *model.Player, push *model.PushEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin push transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The ledger insert runs first so a duplicate date wins over any
	// problem with the player row
	query := tx.Rebind(`
		INSERT INTO pushes (player_id, play_date, height_after, streak_at_time, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	_, err = tx.ExecContext(ctx, query,
		string(push.PlayerID), push.PlayDate, push.HeightAfter, push.StreakAtTime, push.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrAlreadyPlayed
		}
		// A failed statement aborts a PostgreSQL transaction, so the
		// follow-up check goes through the pool
		if exists, checkErr := playerExists(ctx, s.db, player.ID); checkErr == nil && !exists {
			return model.ErrPlayerNotFound
		}
		return fmt.Errorf("insert push: %w", err)
	}

	if err := updatePlayer(ctx, tx, player); err != nil {
		if errors.Is(err, model.ErrConcurrentUpdate) {
			return mismatchError(ctx, tx, player.ID)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit push: %w", err)
	}

	player.Version++
	return nil
}

// Death ledger operations

func (s *Storage) RecordDeath(ctx context.Context, death *model.DeathEvent) (*model.DeathEvent, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin death transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exists, err := playerExists(ctx, tx, death.PlayerID)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, model.ErrPlayerNotFound
	}

	stored, created, err := insertDeath(ctx, tx, death)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit death: %w", err)
	}
	return stored, created, nil
}

func (s *Storage) GetDeath(ctx context.Context, id model.PlayerID, lastPlayedDate string) (*model.DeathEvent, error) {
	return getDeath(ctx, s.db, id, lastPlayedDate)
}

func (s *Storage) ListDeaths(ctx context.Context, id model.PlayerID) ([]*model.DeathEvent, error) {
	var deaths []*model.DeathEvent
	query := s.db.Rebind(`SELECT ` + deathColumns + ` FROM deaths WHERE player_id = ? ORDER BY id`)
	if err := s.db.SelectContext(ctx, &deaths, query, string(id)); err != nil {
		return nil, fmt.Errorf("list deaths: %w", err)
	}
	for _, d := range deaths {
		d.CreatedAt = d.CreatedAt.UTC()
	}
	return deaths, nil
}

func (s *Storage) CommitRollback(ctx context.Context, player *model.Player, death *model.DeathEvent) (*model.DeathEvent, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rollback transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := updatePlayer(ctx, tx, player); err != nil {
		if errors.Is(err, model.ErrConcurrentUpdate) {
			return nil, mismatchError(ctx, tx, player.ID)
		}
		return nil, err
	}

	stored, _, err := insertDeath(ctx, tx, death)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rollback: %w", err)
	}

	player.Version++
	return stored, nil
}

// Aggregation reads

func (s *Storage) ListPlayersByHeight(ctx context.Context, limit int) ([]*model.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players ORDER BY height DESC, max_height DESC, id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []playerRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	players := make([]*model.Player, len(rows))
	for i, r := range rows {
		players[i] = r.toModel()
	}
	return players, nil
}

func (s *Storage) Survivorship(ctx context.Context) (*model.Survivorship, error) {
	var row struct {
		TotalPlayers  int `db:"total_players"`
		AlivePlayers  int `db:"alive_players"`
		TotalDeaths   int `db:"total_deaths"`
		TotalHeight   int `db:"total_height"`
		HighestHeight int `db:"highest_height"`
		LongestStreak int `db:"longest_streak"`
	}
	query := `
		SELECT
			COUNT(*) AS total_players,
			COALESCE(SUM(CASE WHEN height > 0 THEN 1 ELSE 0 END), 0) AS alive_players,
			COALESCE(SUM(death_count), 0) AS total_deaths,
			COALESCE(SUM(height), 0) AS total_height,
			COALESCE(MAX(max_height), 0) AS highest_height,
			COALESCE(MAX(streak), 0) AS longest_streak
		FROM players`
	if err := s.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("survivorship: %w", err)
	}

	return &model.Survivorship{
		TotalPlayers:  row.TotalPlayers,
		AlivePlayers:  row.AlivePlayers,
		TotalDeaths:   row.TotalDeaths,
		TotalHeight:   row.TotalHeight,
		HighestHeight: row.HighestHeight,
		LongestStreak: row.LongestStreak,
	}, nil
}

// Query helpers shared by the connection and transactions

type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	Rebind(query string) string
}

func getPlayer(ctx context.Context, q queryer, id model.PlayerID) (*model.Player, error) {
	var row playerRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(`SELECT `+playerColumns+` FROM players WHERE id = ?`), string(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("get player: %w", err)
	}
	return row.toModel(), nil
}

func playerExists(ctx context.Context, q queryer, id model.PlayerID) (bool, error) {
	var found int
	err := sqlx.GetContext(ctx, q, &found, q.Rebind(`SELECT 1 FROM players WHERE id = ?`), string(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check player: %w", err)
	}
	return true, nil
}

func hasPush(ctx context.Context, q queryer, id model.PlayerID, playDate string) (bool, error) {
	var found int
	err := sqlx.GetContext(ctx, q, &found,
		q.Rebind(`SELECT 1 FROM pushes WHERE player_id = ? AND play_date = ?`), string(id), playDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check push: %w", err)
	}
	return true, nil
}

func getDeath(ctx context.Context, q queryer, id model.PlayerID, lastPlayedDate string) (*model.DeathEvent, error) {
	var death model.DeathEvent
	err := sqlx.GetContext(ctx, q, &death,
		q.Rebind(`SELECT `+deathColumns+` FROM deaths WHERE player_id = ? AND last_played_date = ?`),
		string(id), lastPlayedDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrDeathNotFound
		}
		return nil, fmt.Errorf("get death: %w", err)
	}
	death.CreatedAt = death.CreatedAt.UTC()
	return &death, nil
}

// updatePlayer writes the player if the stored version still matches.
// Zero rows affected is reported as model.ErrConcurrentUpdate.
func updatePlayer(ctx context.Context, q queryer, player *model.Player) error {
	query := q.Rebind(`
		UPDATE players SET
			height = ?, streak = ?, last_played_date = ?, total_pushes = ?,
			max_height = ?, death_count = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`)
	res, err := q.ExecContext(ctx, query,
		player.Height, player.Streak, nullDate(player.LastPlayedDate), player.TotalPushes,
		player.MaxHeight, player.DeathCount, player.UpdatedAt.UTC(),
		string(player.ID), player.Version,
	)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	if n == 0 {
		return model.ErrConcurrentUpdate
	}
	return nil
}

// mismatchError explains why a versioned update matched no rows
func mismatchError(ctx context.Context, q queryer, id model.PlayerID) error {
	exists, err := playerExists(ctx, q, id)
	if err != nil {
		return err
	}
	if !exists {
		return model.ErrPlayerNotFound
	}
	return model.ErrConcurrentUpdate
}

// insertDeath inserts the death unless its interval is already recorded, in
// which case the existing row is returned
func insertDeath(ctx context.Context, q queryer, death *model.DeathEvent) (*model.DeathEvent, bool, error) {
	query := q.Rebind(`
		INSERT INTO deaths (player_id, height_lost, streak_lost, days_missed, last_played_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (player_id, last_played_date) DO NOTHING
		RETURNING id`)

	var id int64
	err := sqlx.GetContext(ctx, q, &id, query,
		string(death.PlayerID), death.HeightLost, death.StreakLost, death.DaysMissed,
		death.LastPlayedDate, death.CreatedAt.UTC(),
	)
	switch {
	case err == nil:
		d := *death
		d.ID = id
		return &d, true, nil
	case errors.Is(err, sql.ErrNoRows):
		existing, err := getDeath(ctx, q, death.PlayerID, death.LastPlayedDate)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	default:
		return nil, false, fmt.Errorf("insert death: %w", err)
	}
}

// isUniqueViolation recognises unique/primary key violations from either driver
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}
