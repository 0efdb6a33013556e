package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erazemk/knjiznica/internal/auth"
	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/store"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil, env(nil), io.Discard)
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.dbPath != "knjiznica.sqlite3" || cfg.addr != ":8080" || cfg.adminUser != "admin" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.loanDays != 14 || cfg.debug {
		t.Errorf("unexpected loan defaults: %+v", cfg)
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	vars := map[string]string{
		"KNJIZNICA_DB":        "/tmp/env.sqlite3",
		"KNJIZNICA_ADDR":      ":9000",
		"KNJIZNICA_LOAN_DAYS": "21",
		"KNJIZNICA_DEBUG":     "true",
	}

	cfg, err := parseConfig([]string{"-a", ":7000", "-loan-days", "0"}, env(vars), io.Discard)
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.dbPath != "/tmp/env.sqlite3" {
		t.Errorf("expected db path from env, got %q", cfg.dbPath)
	}
	if cfg.addr != ":7000" {
		t.Errorf("expected flag to win over env, got %q", cfg.addr)
	}
	if cfg.loanDays != 0 {
		t.Errorf("expected loan days 0 from flag, got %d", cfg.loanDays)
	}
	if cfg.logLevel() != slog.LevelDebug {
		t.Errorf("expected debug level from env")
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		args []string
		vars map[string]string
	}{
		{[]string{"serve"}, nil},
		{[]string{"-loan-days", "-1"}, nil},
		{nil, map[string]string{"KNJIZNICA_LOAN_DAYS": "two weeks"}},
		{nil, map[string]string{"KNJIZNICA_DEBUG": "maybe"}},
	}
	for _, tt := range tests {
		if _, err := parseConfig(tt.args, env(tt.vars), io.Discard); err == nil {
			t.Errorf("parseConfig(%v, %v): expected error", tt.args, tt.vars)
		}
	}

	var out bytes.Buffer
	_, err := parseConfig([]string{"-h"}, env(nil), &out)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("expected flag.ErrHelp, got %v", err)
	}
	if !strings.Contains(out.String(), "Usage: knjiznica") {
		t.Errorf("expected usage text, got %q", out.String())
	}
}

func TestInitDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "init.sqlite3")
	ctx := context.Background()

	password, err := initDatabase(ctx, path, "root")
	if err != nil {
		t.Fatalf("initDatabase: %v", err)
	}
	if len(password) != 16 {
		t.Errorf("expected 16 character password, got %d", len(password))
	}

	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	user, err := store.GetUserByUsername(ctx, database, "root")
	if err != nil || user == nil {
		t.Fatalf("expected admin user, got %v, %v", user, err)
	}
	ok, _ := auth.CheckPassword(user.PasswordHash, password)
	if !ok {
		t.Error("printed password does not match stored hash")
	}
}

func TestInitDatabaseRemovesFileOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "init.sqlite3")

	if _, err := initDatabase(context.Background(), path, " "); err == nil {
		t.Fatal("expected error for blank admin username")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected database file removed, stat err = %v", err)
	}
}

func TestLevelRouter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, cleanup, err := newLogger(&stdout, &stderr, "", slog.LevelInfo)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	defer cleanup()

	logger.Debug("hidden")
	logger.Info("book borrowed", "book_id", 1)
	logger.Error("copy counter out of sync")

	if strings.Contains(stdout.String(), "hidden") {
		t.Error("debug line should be filtered at info level")
	}
	if !strings.Contains(stdout.String(), "book borrowed") || strings.Contains(stdout.String(), "out of sync") {
		t.Errorf("unexpected stdout: %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "out of sync") {
		t.Errorf("expected error on stderr, got %q", stderr.String())
	}
}
