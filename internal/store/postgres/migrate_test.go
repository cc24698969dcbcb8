package postgres

import (
	"strings"
	"testing"
)

func TestMigrations_EmbeddedAndOrdered(t *testing.T) {
	migs, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations error: %v", err)
	}
	if len(migs) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	if migs[0].Version != "0001_init" {
		t.Fatalf("first version = %q, want %q", migs[0].Version, "0001_init")
	}
	for i := 1; i < len(migs); i++ {
		if migs[i-1].Version >= migs[i].Version {
			t.Fatalf("versions out of order: %q before %q", migs[i-1].Version, migs[i].Version)
		}
	}

	up := migs[0].Up
	for _, want := range []string{"bookings_no_overlap", "btree_gist", "outbox_events", "int4range"} {
		if !strings.Contains(up, want) {
			t.Fatalf("init migration missing %q", want)
		}
	}
	if strings.Contains(up, "DROP TABLE") {
		t.Fatalf("up section leaked the down section")
	}
	if !strings.Contains(migs[0].Down, "DROP TABLE IF EXISTS bookings") {
		t.Fatalf("down section = %q", migs[0].Down)
	}
}

func TestSplitGoose(t *testing.T) {
	up, down, err := splitGoose("-- +goose Up\nCREATE TABLE a (id int);\n-- +goose Down\nDROP TABLE a;\n")
	if err != nil {
		t.Fatalf("splitGoose error: %v", err)
	}
	if up != "CREATE TABLE a (id int);" {
		t.Fatalf("up = %q", up)
	}
	if down != "DROP TABLE a;" {
		t.Fatalf("down = %q", down)
	}

	if _, _, err := splitGoose("CREATE TABLE a (id int);"); err == nil {
		t.Fatalf("expected error without up marker")
	}
}

func TestSplitSQLStatements(t *testing.T) {
	got := splitSQLStatements("CREATE TABLE a (id int);\n\n  ;CREATE INDEX a_idx ON a (id);  ")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %q", len(got), got)
	}
	if got[1] != "CREATE INDEX a_idx ON a (id)" {
		t.Fatalf("got[1] = %q", got[1])
	}
}

func TestNormalizeExtensionStatement(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "CREATE EXTENSION IF NOT EXISTS btree_gist", want: "CREATE EXTENSION IF NOT EXISTS btree_gist SCHEMA public", ok: true},
		{in: "create extension btree_gist schema ext", ok: false},
		{in: "CREATE EXTENSION IF NOT EXISTS pgcrypto", ok: false},
		{in: "CREATE TABLE btree_gist_notes (id int)", ok: false},
	}
	for _, tc := range tests {
		got, ok := normalizeExtensionStatement(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("normalizeExtensionStatement(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
