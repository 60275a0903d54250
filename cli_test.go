package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Nowayz/WebSocket-Application-Relay/internal/store"
)

func cliDBSetup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "relay.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	st.Close()
	return dbPath
}

func TestRunCLIVersionReturnsTrue(t *testing.T) {
	if !RunCLI([]string{"version"}, "not-used.db") {
		t.Error("RunCLI(version) should return true")
	}
}

func TestRunCLIUnknownSubcommandReturnsFalse(t *testing.T) {
	if RunCLI([]string{"nonexistent-cmd"}, "not-used.db") {
		t.Error("RunCLI(unknown) should return false")
	}
}

func TestRunCLIEmptyArgsReturnsFalse(t *testing.T) {
	if RunCLI([]string{}, "not-used.db") {
		t.Error("RunCLI([]) should return false")
	}
}

func TestRunCLINilArgsReturnsFalse(t *testing.T) {
	if RunCLI(nil, "not-used.db") {
		t.Error("RunCLI(nil) should return false")
	}
}

func TestCLICredsListEmptyReturnsTrue(t *testing.T) {
	dbPath := cliDBSetup(t)
	if !RunCLI([]string{"creds"}, dbPath) {
		t.Error("RunCLI(creds) should return true")
	}
}

func TestCLICredsAddAndList(t *testing.T) {
	dbPath := cliDBSetup(t)
	if !RunCLI([]string{"creds", "add", "hunter2", "1"}, dbPath) {
		t.Error("RunCLI(creds add) should return true")
	}

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	creds, err := st.Credentials(context.Background())
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if len(creds) != 1 || string(creds[0].Password) != "hunter2" || creds[0].Level != 1 {
		t.Errorf("unexpected credentials after CLI add: %+v", creds)
	}
}

func TestCLIAuditEmptyReturnsTrue(t *testing.T) {
	dbPath := cliDBSetup(t)
	if !RunCLI([]string{"audit"}, dbPath) {
		t.Error("RunCLI(audit) should return true")
	}
}

func TestCLIAuditAfterRecording(t *testing.T) {
	dbPath := cliDBSetup(t)
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if err := st.RecordAudit(context.Background(), "authenticate", 99); err != nil {
		t.Fatalf("RecordAudit: %v", err)
	}
	st.Close()

	if !RunCLI([]string{"audit"}, dbPath) {
		t.Error("RunCLI(audit) should return true")
	}
}
