package database

import (
	"strings"
	"testing"
)

func TestConfigURLEscapesCredentials(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "p@ss/word", Name: "catch"}
	got := cfg.URL()
	if !strings.HasPrefix(got, "postgres://bot:p%40ss%2Fword@db:5432/catch") {
		t.Fatalf("url = %q", got)
	}
	if !strings.HasSuffix(got, "sslmode=disable") {
		t.Fatalf("url lacks default sslmode: %q", got)
	}
	if !strings.Contains(cfg.DSN(), "sslmode=disable") {
		t.Fatalf("dsn = %q", cfg.DSN())
	}
}

func TestOpenSQLiteInMemory(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var one int
	if err := db.Get(&one, db.Rebind("SELECT ?"), 1); err != nil || one != 1 {
		t.Fatalf("select = %d, %v", one, err)
	}
}
