package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"market-pulse/internal/db"
	"market-pulse/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	cmdUp      = "up"
	cmdDown    = "down"
	cmdVersion = "version"
	cmdStatus  = "status"

	usage = "usage: migrate [up|down|version|status] [steps]"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	loadEnvFunc = func() error { return godotenv.Load() }
	openPool    = func(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
		return db.Connect(ctx, dsn, db.PoolOptions{MaxConns: 2})
	}
)

var migrationName = regexp.MustCompile(`^migrations/([0-9]+)_([a-z0-9_]+)\.(up|down)\.sql$`)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// database is the subset of *pgxpool.Pool the migrator drives.
type database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

func main() {
	_ = loadEnvFunc()
	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	if len(os.Args) < 2 {
		log.Fatal().Msg(usage)
	}

	dsn := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := openPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()

	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		log.Fatal().Err(err).Msg("load migrations")
	}
	if err := run(ctx, pool, migrations, os.Args[1:]); err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("migrate failed")
	}
}

func run(ctx context.Context, conn database, migrations []migration, args []string) error {
	if err := ensureMigrationTable(ctx, conn); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	switch args[0] {
	case cmdUp:
		applied, err := applyUp(ctx, conn, migrations)
		if err != nil {
			return fmt.Errorf("apply migrations up: %w", err)
		}
		log.Info().Int("applied", applied).Msg("migrations up complete")
	case cmdDown:
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid down steps: %q", args[1])
			}
			steps = n
		}
		rolledBack, err := applyDown(ctx, conn, migrations, steps)
		if err != nil {
			return fmt.Errorf("apply migrations down: %w", err)
		}
		log.Info().Int("rolled_back", rolledBack).Msg("migrations down complete")
	case cmdVersion:
		version, name, err := currentVersion(ctx, conn)
		if err != nil {
			return fmt.Errorf("read current version: %w", err)
		}
		if version == 0 {
			log.Info().Msg("no migrations applied")
			return nil
		}
		log.Info().Int64("version", version).Str("name", name).Msg("current version")
	case cmdStatus:
		applied, err := loadAppliedVersions(ctx, conn)
		if err != nil {
			return fmt.Errorf("read applied versions: %w", err)
		}
		for _, m := range pending(migrations, applied) {
			log.Info().Int64("version", m.Version).Str("name", m.Name).Msg("pending")
		}
		log.Info().Int("applied", len(applied)).Int("total", len(migrations)).Msg("migration status")
	default:
		return fmt.Errorf("unknown command %q. %s", args[0], usage)
	}
	return nil
}

func ensureMigrationTable(ctx context.Context, conn database) error {
	_, err := conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version     BIGINT PRIMARY KEY,
    name        TEXT NOT NULL,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`)
	return err
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	paths, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no migration files found")
	}

	index := make(map[int64]*migration)
	for _, p := range paths {
		matches := migrationName.FindStringSubmatch(p)
		if matches == nil {
			return nil, fmt.Errorf("invalid migration filename: %s", p)
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version in %s: %w", p, err)
		}

		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", p, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("empty migration file: %s", p)
		}

		m, ok := index[version]
		if !ok {
			m = &migration{Version: version, Name: matches[2]}
			index[version] = m
		} else if m.Name != matches[2] {
			return nil, fmt.Errorf("conflicting names for version %d: %s vs %s", version, m.Name, matches[2])
		}

		target := &m.UpSQL
		if matches[3] == "down" {
			target = &m.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", matches[3], version)
		}
		*target = body
	}

	out := make([]migration, 0, len(index))
	for _, m := range index {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration version %d must include both up and down files", m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func pending(migrations []migration, applied map[int64]struct{}) []migration {
	var out []migration
	for _, m := range migrations {
		if _, ok := applied[m.Version]; !ok {
			out = append(out, m)
		}
	}
	return out
}

func loadAppliedVersions(ctx context.Context, conn database) (map[int64]struct{}, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	applied := make(map[int64]struct{}, len(versions))
	for _, v := range versions {
		applied[v] = struct{}{}
	}
	return applied, nil
}

// inTx runs the migration body and its bookkeeping statement atomically.
func inTx(ctx context.Context, conn database, body, record string, version int64, args ...any) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, body); err != nil {
		return fmt.Errorf("version %d failed: %w", version, err)
	}
	if _, err := tx.Exec(ctx, record, args...); err != nil {
		return fmt.Errorf("record version %d failed: %w", version, err)
	}
	return tx.Commit(ctx)
}

func applyUp(ctx context.Context, conn database, migrations []migration) (int, error) {
	applied, err := loadAppliedVersions(ctx, conn)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range pending(migrations, applied) {
		err := inTx(ctx, conn, m.UpSQL,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
			m.Version, m.Version, m.Name)
		if err != nil {
			return count, err
		}
		log.Info().Int64("version", m.Version).Str("name", m.Name).Msg("applied migration")
		count++
	}
	return count, nil
}

func applyDown(ctx context.Context, conn database, migrations []migration, steps int) (int, error) {
	if steps <= 0 {
		return 0, errors.New("steps must be > 0")
	}

	byVersion := make(map[int64]migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT $1`, steps)
	if err != nil {
		return 0, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, err
	}

	count := 0
	for _, version := range versions {
		m, ok := byVersion[version]
		if !ok {
			return count, fmt.Errorf("cannot find migration source for applied version %d", version)
		}
		err := inTx(ctx, conn, m.DownSQL,
			`DELETE FROM schema_migrations WHERE version = $1`,
			m.Version, m.Version)
		if err != nil {
			return count, err
		}
		log.Info().Int64("version", m.Version).Str("name", m.Name).Msg("rolled back migration")
		count++
	}
	return count, nil
}

func currentVersion(ctx context.Context, conn database) (int64, string, error) {
	var version int64
	var name string
	err := conn.QueryRow(ctx, `SELECT version, name FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", err
	}
	return version, name, nil
}
