package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"slices"
	"strconv"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// EmbeddedMigrations exposes the schema migrations shipped with the binary.
func EmbeddedMigrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migration is one forward-only schema step.
type Migration struct {
	Version int64
	Name    string
	Path    string
}

// MigrationStatus summarises what is applied and what is pending.
type MigrationStatus struct {
	CurrentVersion int64   `json:"current_version"`
	Applied        []int64 `json:"applied"`
	Pending        []int64 `json:"pending"`
}

// Conn is the connection surface the migrator needs.
type Conn interface {
	Beginner
	DBTX
}

var migrationFileName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.up\.sql$`)

const (
	createMigrationsTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    BIGINT PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	appliedVersionsSQL = `SELECT COALESCE(array_agg(version ORDER BY version), '{}') FROM schema_migrations`
	recordMigrationSQL = `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`
)

// LoadMigrations lists NNNN_name.up.sql files in version order. Other files
// are ignored; duplicate versions are an error.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("platform/db: read migrations: %w", err)
	}
	seen := make(map[int64]string)
	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationFileName.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("platform/db: migration version %q: %w", match[1], err)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("platform/db: duplicate migration version %d (%s, %s)", version, prev, entry.Name())
		}
		seen[version] = entry.Name()
		out = append(out, Migration{Version: version, Name: match[2], Path: entry.Name()})
	}
	slices.SortFunc(out, func(a, b Migration) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		default:
			return 0
		}
	})
	return out, nil
}

// Migrator applies embedded SQL migrations and then re-applies the
// idempotent schema objects (policies, views) rendered from Go declarations.
type Migrator struct {
	conn    Conn
	fsys    fs.FS
	logger  *slog.Logger
	objects []string
}

// NewMigrator constructs a Migrator. objects are DDL scripts executed after
// the migrations on every Up, in order, inside one transaction.
func NewMigrator(conn Conn, fsys fs.FS, logger *slog.Logger, objects ...string) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{conn: conn, fsys: fsys, logger: logger, objects: objects}
}

// Status reports applied and pending versions.
func (m *Migrator) Status(ctx context.Context) (MigrationStatus, error) {
	migrations, err := LoadMigrations(m.fsys)
	if err != nil {
		return MigrationStatus{}, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return MigrationStatus{}, err
	}
	status := MigrationStatus{Applied: applied, Pending: []int64{}}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1]
	}
	for _, mig := range migrations {
		if !slices.Contains(applied, mig.Version) {
			status.Pending = append(status.Pending, mig.Version)
		}
	}
	return status, nil
}

// Up applies pending migrations, one transaction each, then the schema
// objects. It returns the versions applied by this call.
func (m *Migrator) Up(ctx context.Context) ([]int64, error) {
	migrations, err := LoadMigrations(m.fsys)
	if err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var done []int64
	for _, mig := range migrations {
		if slices.Contains(applied, mig.Version) {
			continue
		}
		body, err := fs.ReadFile(m.fsys, mig.Path)
		if err != nil {
			return done, fmt.Errorf("platform/db: read migration %s: %w", mig.Path, err)
		}
		err = WithTx(ctx, m.conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(body)); err != nil {
				return fmt.Errorf("platform/db: apply migration %s: %w", mig.Path, err)
			}
			_, err := tx.Exec(ctx, recordMigrationSQL, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return done, err
		}
		m.logger.Info("migration applied", slog.Int64("version", mig.Version), slog.String("name", mig.Name))
		done = append(done, mig.Version)
	}

	if len(m.objects) > 0 {
		err := WithTx(ctx, m.conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
			for i, ddl := range m.objects {
				if _, err := tx.Exec(ctx, ddl); err != nil {
					return fmt.Errorf("platform/db: apply schema objects #%d: %w", i, err)
				}
			}
			return nil
		})
		if err != nil {
			return done, err
		}
		m.logger.Info("schema objects applied", slog.Int("scripts", len(m.objects)))
	}
	return done, nil
}

func (m *Migrator) applied(ctx context.Context) ([]int64, error) {
	if _, err := m.conn.Exec(ctx, createMigrationsTableSQL); err != nil {
		return nil, fmt.Errorf("platform/db: init schema_migrations: %w", err)
	}
	var versions []int64
	if err := m.conn.QueryRow(ctx, appliedVersionsSQL).Scan(&versions); err != nil {
		return nil, fmt.Errorf("platform/db: read schema_migrations: %w", err)
	}
	return versions, nil
}
