package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/uptrace/bun"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrateLockKey = "pawbook:migrate"

type Migration struct {
	Version string
	Up      string
	Down    string
}

// Migrations returns the embedded goose-style migrations ordered by version.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}

	migs := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := fs.ReadFile(migrationFS, "migrations/"+e.Name())
		if err != nil {
			return nil, err
		}
		up, down, err := splitGoose(string(b))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		migs = append(migs, Migration{Version: strings.TrimSuffix(e.Name(), ".sql"), Up: up, Down: down})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].Version < migs[j].Version })
	return migs, nil
}

// Migrate applies every pending migration in one transaction and returns the
// versions it applied. Concurrent callers serialize on an advisory lock.
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	var applied []string
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", migrateLockKey).Exec(ctx); err != nil {
			return err
		}
		var err error
		applied, err = applyMigrations(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// PendingMigrations lists versions not yet recorded as applied.
func PendingMigrations(ctx context.Context, db bun.IDB) ([]string, error) {
	migs, err := Migrations()
	if err != nil {
		return nil, err
	}
	done, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, m := range migs {
		if !done[m.Version] {
			pending = append(pending, m.Version)
		}
	}
	return pending, nil
}

func applyMigrations(ctx context.Context, db bun.IDB) ([]string, error) {
	if _, err := db.NewRaw(`CREATE TABLE IF NOT EXISTS pawbook_schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`).Exec(ctx); err != nil {
		return nil, err
	}

	migs, err := Migrations()
	if err != nil {
		return nil, err
	}
	done, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range migs {
		if done[m.Version] {
			continue
		}
		for _, stmt := range splitSQLStatements(m.Up) {
			if normalized, ok := normalizeExtensionStatement(stmt); ok {
				stmt = normalized
			}
			if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
				return nil, fmt.Errorf("migration %s: %w", m.Version, err)
			}
		}
		if _, err := db.NewRaw("INSERT INTO pawbook_schema_migrations (version) VALUES (?)", m.Version).Exec(ctx); err != nil {
			return nil, err
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

func appliedVersions(ctx context.Context, db bun.IDB) (map[string]bool, error) {
	var exists bool
	if err := db.NewRaw("SELECT to_regclass('pawbook_schema_migrations') IS NOT NULL").Scan(ctx, &exists); err != nil {
		return nil, err
	}
	done := make(map[string]bool)
	if !exists {
		return done, nil
	}
	var versions []string
	if err := db.NewRaw("SELECT version FROM pawbook_schema_migrations").Scan(ctx, &versions); err != nil {
		return nil, err
	}
	for _, v := range versions {
		done[v] = true
	}
	return done, nil
}

func splitGoose(sql string) (up, down string, err error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", "", fmt.Errorf("missing goose up marker")
	}
	afterUp := strings.TrimLeft(sql[upIdx+len(upMarker):], "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), "", nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), strings.TrimSpace(afterUp[downIdx+len(downMarker):]), nil
}

// normalizeExtensionStatement pins btree_gist to the public schema so test
// runs in throwaway schemas share one installation.
func normalizeExtensionStatement(stmt string) (string, bool) {
	s := strings.TrimSpace(stmt)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "CREATE EXTENSION") {
		return "", false
	}
	if !strings.Contains(upper, "BTREE_GIST") {
		return "", false
	}
	if strings.Contains(upper, " SCHEMA ") {
		return "", false
	}
	return s + " SCHEMA public", true
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
