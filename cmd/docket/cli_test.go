package main

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/docket/internal/identity"
)

// writeConfig writes a SQLite and local-blob config under a temp dir.
func writeConfig(t *testing.T) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	yaml := fmt.Sprintf(`database:
  driver: sqlite
  path: %s
blob:
  backend: local
  dir: %s
server:
  jwt_secret: test-secret
log:
  level: error
seed:
  ministries:
    - code: MOH
      name: Ministry of Health
  users:
    - id: 1
      display_name: Cabinet Secretary
      role: admin
    - id: 2
      display_name: Clerk
`, filepath.Join(dir, "docket.db"), filepath.Join(dir, "uploads"))
	path = filepath.Join(dir, "docket.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path, dir
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append(args, "--config", configPath))
	err := cmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, configPath, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out)
	}
	return out
}

func expectContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestDBInit(t *testing.T) {
	cfg, _ := writeConfig(t)
	out := mustRun(t, cfg, "db", "init")
	expectContains(t, out,
		"Migrated",
		"Seeded 1 ministries, 0 state departments, 0 agencies, 2 users",
		"initialized successfully",
	)

	// idempotent
	mustRun(t, cfg, "db", "init")
}

func TestDBInit_MissingConfig(t *testing.T) {
	_, err := runCLI(t, filepath.Join(t.TempDir(), "absent.yaml"), "db", "init")
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("err = %v, want load config failure", err)
	}
}

func TestMemoWorkflow(t *testing.T) {
	cfg, _ := writeConfig(t)
	mustRun(t, cfg, "db", "init")

	out := mustRun(t, cfg, "memo", "create", "--as", "2",
		"--name", "Health Budget", "--summary", "Budget summary", "--body", "Full text",
		"--ministry", "1", "--affects", "ministry_1")
	expectContains(t, out, "Created memo 1 (draft)", "Affects: ministry_1")

	out = mustRun(t, cfg, "memo", "update", "1", "--as", "2", "--status", "submitted")
	expectContains(t, out, "Updated memo 1 (draft -> submitted)")

	_, err := runCLI(t, cfg, "memo", "delete", "1", "--as", "2")
	if err == nil || !strings.Contains(err.Error(), "draft") {
		t.Errorf("delete submitted memo err = %v, want draft-only refusal", err)
	}

	out = mustRun(t, cfg, "memo", "list", "--status", "submitted")
	expectContains(t, out, "NAME", "Health Budget", "submitted")

	out = mustRun(t, cfg, "memo", "list", "--status", "approved")
	expectContains(t, out, "No memos found.")

	out = mustRun(t, cfg, "memo", "show", "1")
	expectContains(t, out, "Name:        Health Budget", "Status:      submitted", "Affects:     ministry_1", "Full text")
	if strings.Contains(out, "Submitted:   -") {
		t.Errorf("submitted_at not set:\n%s", out)
	}

	out = mustRun(t, cfg, "inbox", "list", "--as", "1")
	expectContains(t, out, "SUBJECT", "Health Budget")

	out = mustRun(t, cfg, "inbox", "list", "--as", "2")
	expectContains(t, out, "No notifications.")
}

func TestMemoCreate_ValidationFailure(t *testing.T) {
	cfg, _ := writeConfig(t)
	mustRun(t, cfg, "db", "init")

	_, err := runCLI(t, cfg, "memo", "create", "--as", "2", "--priority", "critical", "--affects", "planet_1")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"name", "priority", "planet_1"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestUnknownActor(t *testing.T) {
	cfg, _ := writeConfig(t)
	mustRun(t, cfg, "db", "init")

	_, err := runCLI(t, cfg, "memo", "delete", "1", "--as", "99")
	if err == nil || !strings.Contains(err.Error(), "user not found") {
		t.Fatalf("err = %v, want user not found", err)
	}
}

func TestMeetingAgendaDocuments(t *testing.T) {
	cfg, dir := writeConfig(t)
	mustRun(t, cfg, "db", "init")

	out := mustRun(t, cfg, "meeting", "create", "--as", "1",
		"--name", "Cabinet", "--type", "cabinet", "--start", "2026-03-04 09:00",
		"--location", "State House", "--participants", "1,2")
	expectContains(t, out, "Created meeting 1 (scheduled, 2026-03-04 09:00)")

	out = mustRun(t, cfg, "agenda", "add", "1", "--as", "1", "--name", "Budget", "--ministry", "1")
	expectContains(t, out, "Added agenda item 1 at position 1")

	_, err := runCLI(t, cfg, "agenda", "add", "1", "--as", "1", "--name", "Duplicate", "--order", "1")
	if err == nil || !strings.Contains(err.Error(), "sort_order") {
		t.Errorf("duplicate order err = %v, want conflict on sort_order", err)
	}

	out = mustRun(t, cfg, "agenda", "next-order", "1")
	if strings.TrimSpace(out) != "2" {
		t.Errorf("next-order = %q, want 2", out)
	}

	file := filepath.Join(t.TempDir(), "budget.pdf")
	if err := os.WriteFile(file, []byte("%PDF-1.4 budget"), 0o644); err != nil {
		t.Fatal(err)
	}
	out = mustRun(t, cfg, "doc", "attach", "1", file, "--as", "1")
	expectContains(t, out, "Attached document 1 (pdf, 15 B)")
	uploads := filepath.Join(dir, "uploads")
	if n := countFiles(t, uploads); n != 1 {
		t.Errorf("stored files = %d, want 1", n)
	}

	out = mustRun(t, cfg, "doc", "list", "1")
	expectContains(t, out, "budget.pdf", "pdf", "Cabinet Secretary")

	out = mustRun(t, cfg, "agenda", "list", "1")
	expectContains(t, out, "Budget", "Ministry of Health")

	out = mustRun(t, cfg, "meeting", "show", "1")
	expectContains(t, out, "Participants:", "Clerk", "Agenda:", "Budget", "Created by:  Cabinet Secretary")

	out = mustRun(t, cfg, "meeting", "list", "--date", "2026-03-04")
	expectContains(t, out, "Cabinet", "State House")
	out = mustRun(t, cfg, "meeting", "list", "--date", "2026-03-05")
	expectContains(t, out, "No meetings found.")

	out = mustRun(t, cfg, "meeting", "update", "1", "--as", "1", "--status", "completed")
	expectContains(t, out, "Updated meeting 1 (completed)")

	mustRun(t, cfg, "meeting", "participants", "remove", "1", "2", "--as", "1")
	out = mustRun(t, cfg, "meeting", "show", "1")
	if strings.Contains(out, "Clerk") {
		t.Errorf("removed participant still listed:\n%s", out)
	}

	out = mustRun(t, cfg, "meeting", "delete", "1", "--as", "1")
	expectContains(t, out, "Deleted meeting 1")
	if n := countFiles(t, uploads); n != 0 {
		t.Errorf("stored files after delete = %d, want 0", n)
	}
	if _, err := runCLI(t, cfg, "agenda", "show", "1"); err == nil {
		t.Error("agenda item survived meeting delete")
	}
}

func TestAttach_EmptyFile(t *testing.T) {
	cfg, dir := writeConfig(t)
	mustRun(t, cfg, "db", "init")
	mustRun(t, cfg, "meeting", "create", "--as", "1",
		"--name", "Cabinet", "--type", "cabinet", "--start", "2026-03-04 09:00", "--location", "State House")
	mustRun(t, cfg, "agenda", "add", "1", "--as", "1", "--name", "Budget")

	file := filepath.Join(t.TempDir(), "empty.txt")
	os.WriteFile(file, nil, 0o644)
	_, err := runCLI(t, cfg, "doc", "attach", "1", file, "--as", "1")
	if err == nil || !strings.Contains(err.Error(), "file is empty") {
		t.Fatalf("err = %v, want empty file violation", err)
	}
	if n := countFiles(t, filepath.Join(dir, "uploads")); n != 0 {
		t.Errorf("stored files = %d, want 0", n)
	}
}

func TestToken(t *testing.T) {
	cfg, _ := writeConfig(t)
	mustRun(t, cfg, "db", "init")

	out := mustRun(t, cfg, "token", "--user", "1")
	actor, err := identity.NewJWTProvider("test-secret").Resolve(context.Background(), strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if actor.ID != 1 || actor.Role != identity.RoleAdmin || actor.DisplayName != "Cabinet Secretary" {
		t.Errorf("actor = %+v", actor)
	}
}

func TestDBReset(t *testing.T) {
	cfg, _ := writeConfig(t)
	mustRun(t, cfg, "db", "init")
	mustRun(t, cfg, "memo", "create", "--as", "2",
		"--name", "Health Budget", "--summary", "s", "--body", "b", "--ministry", "1")

	out := mustRun(t, cfg, "db", "reset")
	expectContains(t, out, "Type \"yes\" to confirm", "Aborted.")
	out = mustRun(t, cfg, "memo", "list")
	expectContains(t, out, "Health Budget")

	out = mustRun(t, cfg, "db", "reset", "--yes")
	expectContains(t, out, "Dropped database", "initialized successfully")
	out = mustRun(t, cfg, "memo", "list")
	expectContains(t, out, "No memos found.")
}
