package database

import (
	"strings"
	"testing"
	"testing/fstest"

	coreconfig "github.com/m3rciful/sealbid/core/config"
)

func TestListMigrationFilesSortsUpOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_add_index.up.sql":    {Data: []byte("")},
		"migrations/0001_create_bids.up.sql":  {Data: []byte("")},
		"migrations/0001_create_bids.down.sql": {Data: []byte("")},
		"migrations/README":                   {Data: []byte("")},
	}
	got := listMigrationFiles(fsys, "migrations")
	want := []string{"0001_create_bids.up.sql", "0002_add_index.up.sql"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("listMigrationFiles = %v, want %v", got, want)
	}
}

func TestSelectApplied(t *testing.T) {
	files := []string{"0001_a.up.sql", "0002_b.up.sql", "0003_c.up.sql"}
	got := selectApplied(files, 1, 3)
	if len(got) != 2 || got[0] != "0002_b.up.sql" || got[1] != "0003_c.up.sql" {
		t.Fatalf("selectApplied = %v", got)
	}
	if got := selectApplied(files, 3, 3); len(got) != 0 {
		t.Fatalf("expected nothing applied, got %v", got)
	}
}

func TestConnectionStrings(t *testing.T) {
	cfg := coreconfig.DatabaseConfig{
		Host: "db", Port: "5432", User: "bot", Password: "pw", Name: "bids", SSLMode: "disable",
	}
	if got := URL(cfg); got != "postgres://bot:pw@db:5432/bids?sslmode=disable" {
		t.Fatalf("URL = %s", got)
	}
	if got := DSN(cfg); !strings.Contains(got, "dbname=bids") || !strings.Contains(got, "host=db") {
		t.Fatalf("DSN = %s", got)
	}
}
