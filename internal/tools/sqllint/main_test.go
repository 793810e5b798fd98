package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRepositoryQueriesPass(t *testing.T) {
	l := newLinter()
	if err := l.lintPath(filepath.Join("..", "..", "sqlinline")); err != nil {
		t.Fatalf("lintPath: %v", err)
	}
	if len(l.violations) != 0 {
		t.Fatalf("violations: %v", l.violations)
	}
	if len(l.seen) < 8 {
		t.Fatalf("only %d markers found", len(l.seen))
	}
}

func writeSource(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestReportsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.go", "package q\n\nconst QOne = `--sql 11111111-2222-4333-8444-555555555555\nselect 1;\n`\n")
	writeSource(t, dir, "b.go", "package q\n\nconst QTwo = `--sql 11111111-2222-4333-8444-555555555555\nselect 2;\n`\n\nconst QThree = `\ncreate table t (id int);\n`\n\nconst label = \"select a campaign\"\n")

	l := newLinter()
	if err := l.lintPath(dir); err != nil {
		t.Fatalf("lintPath: %v", err)
	}
	if len(l.violations) != 2 {
		t.Fatalf("violations = %v, want 2", l.violations)
	}
	var dup, missing bool
	for _, v := range l.violations {
		switch {
		case v.name == "QTwo" && strings.Contains(v.message, "reused"):
			dup = true
		case v.name == "QThree" && strings.Contains(v.message, "missing"):
			missing = true
		}
	}
	if !dup || !missing {
		t.Fatalf("unexpected violations %v", l.violations)
	}
}
