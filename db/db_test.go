package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dosada05/arcade-tournaments/config"
)

func TestSQLiteDSN(t *testing.T) {
	got := sqliteDSN("file:arcade.db")
	want := "file:arcade.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
	if got != want {
		t.Errorf("sqliteDSN = %q, want %q", got, want)
	}

	got = sqliteDSN("file:arcade.db?_txlock=deferred&_pragma=busy_timeout(100)&_pragma=foreign_keys(0)")
	if got != "file:arcade.db?_txlock=deferred&_pragma=busy_timeout(100)&_pragma=foreign_keys(0)" {
		t.Errorf("explicit params should be kept, got %q", got)
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	conn, err := Connect(config.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "m.db"), 5*time.Second)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := Migrate(ctx, conn, config.DriverSQLite); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
	}

	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'player_achievements'`).Scan(&n); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected player_achievements table, got %d", n)
	}
}

func TestMigrateBackfillsPlayerGames(t *testing.T) {
	conn, err := Connect(config.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "b.db"), 5*time.Second)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	if err := Migrate(ctx, conn, config.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, stmt := range []string{
		`INSERT INTO users (email, nickname, password_hash) VALUES ('o@example.com', 'owner', 'x')`,
		`INSERT INTO tournaments (slug, name, owner_id) VALUES ('cup', 'Cup', 1)`,
		`INSERT INTO games (tournament_id, name) VALUES (1, 'Galaga'), (1, 'Tetris')`,
		`INSERT INTO scores (submission_id, tournament_id, game_id, player_name, value) VALUES
			('s1', 1, 1, 'AAA', 10), ('s2', 1, 1, 'AAA', 20), ('s3', 1, 2, 'AAA', 30), ('s4', 1, 2, 'BBB', 40)`,
	} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if err := Migrate(ctx, conn, config.DriverSQLite); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM player_games WHERE player_name = 'AAA'`).Scan(&n); err != nil {
		t.Fatalf("count player_games: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 backfilled games for AAA, got %d", n)
	}
}

func TestMigrateUnknownDriver(t *testing.T) {
	if err := Migrate(context.Background(), nil, "mysql"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
