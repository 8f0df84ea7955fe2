package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/config"
)

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  config.Config{SQLiteDSN: "file:custom.db?mode=ro", SQLitePath: "ignored.db"},
			want: "file:custom.db?mode=ro",
		},
		{
			name: "memory",
			cfg:  config.Config{SQLitePath: ":memory:"},
			want: "file::memory:?_foreign_keys=on",
		},
		{
			name: "plain path",
			cfg:  config.Config{SQLitePath: filepath.Join(dir, "sub", "tempmon.db")},
			want: "file:" + filepath.Join(dir, "sub", "tempmon.db") + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL",
		},
		{
			name: "file uri with query",
			cfg:  config.Config{SQLitePath: "file:tempmon.db?cache=shared"},
			want: "file:tempmon.db?cache=shared&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.cfg)
			if err != nil {
				t.Fatalf("buildDSN() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("buildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	for _, logQueries := range []bool{false, true} {
		name := "plain"
		if logQueries {
			name = "logging"
		}
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data", "tempmon.db")
			db, err := Open(config.Config{SQLitePath: path, SQLiteLogQueries: logQueries})
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer func() {
				if err := Close(db); err != nil {
					t.Errorf("Close() error = %v", err)
				}
			}()

			applied, err := Migrate(db)
			if err != nil {
				t.Fatalf("Migrate() error = %v", err)
			}
			if len(applied) == 0 || applied[0] != "0001" {
				t.Errorf("Migrate() applied = %v, want [0001 ...]", applied)
			}
			var mode string
			if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
				t.Fatalf("journal_mode: %v", err)
			}
			if !strings.EqualFold(mode, "wal") {
				t.Errorf("journal_mode = %q, want wal", mode)
			}
		})
	}
}

func TestClose_nil(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Errorf("Close(nil) = %v, want nil", err)
	}
}
