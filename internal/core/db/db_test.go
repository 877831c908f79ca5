package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/solatis/cibrule/internal/types"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		url        string
		wantDriver string
		wantSource string
		wantErr    bool
	}{
		{"sqlite://journal.db", driverSQLite, "journal.db", false},
		{"sqlite://data/journal.db", driverSQLite, "data/journal.db", false},
		{"sqlite:///var/lib/cibrule/journal.db", driverSQLite, "/var/lib/cibrule/journal.db", false},
		{"postgres://u:p@db:5432/cibrule?sslmode=disable", driverPostgres, "postgres://u:p@db:5432/cibrule?sslmode=disable", false},
		{"sqlite://", "", "", true},
		{"mysql://db/cibrule", "", "", true},
		{"://bad", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			driver, source, err := parseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if driver != tt.wantDriver || source != tt.wantSource {
				t.Errorf("parseURL() = (%q, %q), want (%q, %q)", driver, source, tt.wantDriver, tt.wantSource)
			}
		})
	}
}

func TestParseMigrationFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"sqlite/002_second.sql": {Data: []byte("CREATE TABLE b (id TEXT);")},
		"sqlite/001_first.sql":  {Data: []byte("CREATE TABLE a (id TEXT);")},
		"sqlite/README.md":      {Data: []byte("ignored")},
	}

	migrations, err := parseMigrationFiles(fsys, "sqlite")
	if err != nil {
		t.Fatalf("parseMigrationFiles failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].ID != "001_first.sql" || migrations[1].ID != "002_second.sql" {
		t.Errorf("migrations not sorted: %s, %s", migrations[0].ID, migrations[1].ID)
	}
	if len(migrations[0].Checksum) != 64 {
		t.Errorf("checksum should be hex sha256, got %q", migrations[0].Checksum)
	}
	if migrations[0].Checksum == migrations[1].Checksum {
		t.Errorf("different content produced equal checksums")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, driver := range []string{driverSQLite, driverPostgres} {
		fsys, dir, err := migrationsFor(driver)
		if err != nil {
			t.Fatalf("migrationsFor(%s) failed: %v", driver, err)
		}
		migrations, err := parseMigrationFiles(fsys, dir)
		if err != nil {
			t.Fatalf("parseMigrationFiles(%s) failed: %v", dir, err)
		}
		if len(migrations) == 0 || migrations[0].ID != "001_initial_schema.sql" {
			t.Errorf("%s: expected 001_initial_schema.sql first, got %v", dir, migrations)
		}
		for _, stmt := range splitStatements(migrations[0].SQL) {
			if strings.HasPrefix(stmt, "--") {
				t.Errorf("%s: comment left in statement %q", dir, stmt)
			}
		}
	}
	if _, _, err := migrationsFor("mysql"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `-- header comment
-- second line
CREATE TABLE a (id TEXT);

-- trailing comment only
;
CREATE INDEX idx ON a (id);
`
	got := splitStatements(sql)
	want := []string{"CREATE TABLE a (id TEXT)", "CREATE INDEX idx ON a (id)"}
	if len(got) != len(want) {
		t.Fatalf("splitStatements() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("statement %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCompareChecksums(t *testing.T) {
	migrations := []migration{{ID: "001_initial_schema.sql", Checksum: "abc"}}

	tests := []struct {
		name     string
		recorded []recordedChecksum
		wantErr  string
	}{
		{"none applied", nil, ""},
		{"matching", []recordedChecksum{{"001_initial_schema.sql", "abc"}}, ""},
		{"modified", []recordedChecksum{{"001_initial_schema.sql", "def"}}, "checksum mismatch"},
		{"unknown", []recordedChecksum{{"009_removed.sql", "abc"}}, "not in embedded files"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compareChecksums(tt.recorded, migrations)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadQueries(t *testing.T) {
	dot, err := loadDotSQL()
	if err != nil {
		t.Fatalf("loadDotSQL failed: %v", err)
	}
	for _, name := range []string{
		"insert-journal-entry",
		"list-journal-entries",
		"list-journal-entries-by-constraint",
		"get-api-key-by-hash",
		"insert-api-key",
		"update-last-used",
	} {
		if _, err := dot.Raw(name); err != nil {
			t.Errorf("query %s not loaded: %v", name, err)
		}
	}
}

func openTestJournal(t *testing.T) (*Journal, *Queries) {
	t.Helper()
	ctx := context.Background()

	conn, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := MigrateUp(ctx, conn); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	queries, err := LoadQueries(conn)
	if err != nil {
		t.Fatalf("LoadQueries failed: %v", err)
	}
	return NewJournal(queries), queries
}

func TestMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close()

	statuses, err := MigrateStatus(ctx, conn)
	if err != nil {
		t.Fatalf("MigrateStatus failed: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Applied {
		t.Fatalf("expected one pending migration, got %+v", statuses)
	}

	if err := MigrateUp(ctx, conn); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	// Second run is a no-op
	if err := MigrateUp(ctx, conn); err != nil {
		t.Fatalf("MigrateUp (repeat) failed: %v", err)
	}

	statuses, err = MigrateStatus(ctx, conn)
	if err != nil {
		t.Fatalf("MigrateStatus failed: %v", err)
	}
	if len(statuses) != 1 || !statuses[0].Applied || statuses[0].AppliedAt == nil {
		t.Errorf("expected applied migration with timestamp, got %+v", statuses)
	}
}

func TestJournal(t *testing.T) {
	ctx := context.Background()
	journal, _ := openTestJournal(t)

	first := &types.JournalEntry{
		ConstraintID: "location-A",
		RuleID:       "location-A-rule",
		Expression:   "#uname eq node1",
		Normalized:   "#uname eq string node1",
	}
	if err := journal.Record(ctx, first); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if first.EntryID == "" || first.CreatedAt.IsZero() {
		t.Errorf("Record did not assign id and timestamp: %+v", first)
	}
	if _, err := types.ParseEntryID(string(first.EntryID)); err != nil {
		t.Errorf("EntryID is not a UUID: %v", err)
	}

	second := &types.JournalEntry{
		ConstraintID: "location-B",
		RuleID:       "location-B-rule",
		Expression:   "defined pingd",
		Normalized:   "defined pingd",
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := journal.Record(ctx, second); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	all, err := journal.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	if all[0].EntryID != second.EntryID {
		t.Errorf("expected newest entry first, got %s", all[0].RuleID)
	}
	if !all[0].CreatedAt.Equal(second.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", all[0].CreatedAt, second.CreatedAt)
	}

	filtered, err := journal.List(ctx, "location-A", 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Normalized != "#uname eq string node1" {
		t.Errorf("filtered list = %+v", filtered)
	}

	limited, err := journal.List(ctx, "", 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored: got %d entries", len(limited))
	}
}
