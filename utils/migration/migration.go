package migration

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Migration is one versioned schema change read from the embedded SQL files.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	Checksum  string
	AppliedAt time.Time
}

// State describes whether a known migration has been applied.
type State struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt time.Time
	// Drifted is set when the file changed after it was applied.
	Drifted bool
}

// Migrator applies the user_profiles schema from an fs.FS of
// NNN_name.up.sql / NNN_name.down.sql pairs.
type Migrator struct {
	db     *sql.DB
	logger *slog.Logger
	files  fs.FS
}

// NewMigrator creates a new migration manager
func NewMigrator(db *sql.DB, logger *slog.Logger, files fs.FS) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger.With("component", "migrator"),
		files:  files,
	}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
		checksum VARCHAR(64) NOT NULL
	)`

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// Load reads every migration pair, ordered by version.
func Load(files fs.FS) ([]Migration, error) {
	var migrations []Migration
	seen := make(map[int]string)

	err := fs.WalkDir(files, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".up.sql") {
			return nil
		}

		base := strings.TrimSuffix(path.Base(p), ".up.sql")
		prefix, name, ok := strings.Cut(base, "_")
		if !ok || name == "" {
			return fmt.Errorf("invalid migration filename %q: want NNN_name.up.sql", p)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return fmt.Errorf("invalid migration version in %q: %w", p, err)
		}
		if other, dup := seen[version]; dup {
			return fmt.Errorf("duplicate migration version %d: %s and %s", version, other, p)
		}
		seen[version] = p

		up, err := fs.ReadFile(files, p)
		if err != nil {
			return fmt.Errorf("failed to read up migration %s: %w", p, err)
		}
		downPath := strings.TrimSuffix(p, ".up.sql") + ".down.sql"
		down, err := fs.ReadFile(files, downPath)
		if err != nil {
			return fmt.Errorf("failed to read down migration %s: %w", downPath, err)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			UpSQL:    string(up),
			DownSQL:  string(down),
			Checksum: checksum(string(up)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]Migration, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version, name, checksum, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]Migration)
	for rows.Next() {
		var mg Migration
		if err := rows.Scan(&mg.Version, &mg.Name, &mg.Checksum, &mg.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[mg.Version] = mg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migration rows: %w", err)
	}
	return applied, nil
}

// Up applies every pending migration in version order and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	all, err := Load(m.files)
	if err != nil {
		return 0, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mg := range all {
		if done, ok := applied[mg.Version]; ok {
			if done.Checksum != mg.Checksum {
				m.logger.WarnContext(ctx, "applied migration changed on disk", "version", mg.Version, "name", mg.Name)
			}
			continue
		}
		if err := m.run(ctx, mg.UpSQL, `INSERT INTO schema_migrations (version, name, checksum) VALUES ($1, $2, $3)`,
			mg.Version, mg.Name, mg.Checksum); err != nil {
			return count, fmt.Errorf("failed to apply migration %d: %w", mg.Version, err)
		}
		m.logger.InfoContext(ctx, "applied migration", "version", mg.Version, "name", mg.Name)
		count++
	}
	return count, nil
}

// Down rolls back the most recently applied migration. It reports false when
// nothing was applied.
func (m *Migrator) Down(ctx context.Context) (bool, error) {
	if err := m.ensureTable(ctx); err != nil {
		return false, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return false, err
	}
	if len(applied) == 0 {
		return false, nil
	}

	last := -1
	for v := range applied {
		last = max(last, v)
	}

	all, err := Load(m.files)
	if err != nil {
		return false, err
	}
	for _, mg := range all {
		if mg.Version != last {
			continue
		}
		if err := m.run(ctx, mg.DownSQL, `DELETE FROM schema_migrations WHERE version = $1`, mg.Version); err != nil {
			return false, fmt.Errorf("failed to roll back migration %d: %w", mg.Version, err)
		}
		m.logger.InfoContext(ctx, "rolled back migration", "version", mg.Version, "name", mg.Name)
		return true, nil
	}
	return false, fmt.Errorf("migration %d not found in filesystem", last)
}

// Status lists every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]State, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	all, err := Load(m.files)
	if err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	return states(all, applied), nil
}

func states(all []Migration, applied map[int]Migration) []State {
	out := make([]State, 0, len(all))
	for _, mg := range all {
		st := State{Version: mg.Version, Name: mg.Name}
		if done, ok := applied[mg.Version]; ok {
			st.Applied = true
			st.AppliedAt = done.AppliedAt
			st.Drifted = done.Checksum != mg.Checksum
		}
		out = append(out, st)
	}
	return out
}

// run executes a migration body and its bookkeeping statement in one transaction.
func (m *Migrator) run(ctx context.Context, body, record string, args ...any) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

func checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
