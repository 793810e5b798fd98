// Command sqllint checks that every inline SQL constant starts with a unique
// --sql <uuid> marker, which SQLRunner requires and logs.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlStatementPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create|alter|drop)\b`)
	uuidMarkerPattern   = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
}

type markerSite struct {
	file string
	line int
	name string
}

type linter struct {
	violations []violation
	seen       map[string]markerSite
}

func newLinter() *linter {
	return &linter{seen: make(map[string]markerSite)}
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	l := newLinter()
	for _, target := range targets {
		if err := l.lintPath(target); err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
	}

	if len(l.violations) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: SQL audit marker problems")
		for _, v := range l.violations {
			fmt.Fprintf(os.Stderr, "  %s\n", v)
		}
		os.Exit(1)
	}
}

func (l *linter) lintPath(target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if filepath.Ext(target) == ".go" {
			return l.lintFile(target)
		}
		return nil
	}
	return filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		return l.lintFile(path)
	})
}

func (l *linter) lintFile(path string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlStatementPattern.MatchString(raw) {
				continue
			}
			site := markerSite{file: path, line: fset.Position(bl.Pos()).Line, name: nameAt(vs.Names, i)}
			l.check(raw, site)
		}
		return true
	})
	return nil
}

func (l *linter) check(raw string, site markerSite) {
	marker := firstLine(raw)
	if !uuidMarkerPattern.MatchString(marker) {
		// Plain strings that merely contain SQL keywords are not queries.
		if !strings.Contains(raw, "\n") {
			return
		}
		l.violations = append(l.violations, violation{
			file: site.file, line: site.line, name: site.name,
			message: "missing or invalid --sql <uuid> marker",
		})
		return
	}
	if prev, dup := l.seen[marker]; dup {
		l.violations = append(l.violations, violation{
			file: site.file, line: site.line, name: site.name,
			message: fmt.Sprintf("marker reused from %s:%d (%s)", prev.file, prev.line, prev.name),
		})
		return
	}
	l.seen[marker] = site
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func nameAt(idents []*ast.Ident, i int) string {
	if i < len(idents) && idents[i] != nil {
		return idents[i].Name
	}
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident != nil {
			parts = append(parts, ident.Name)
		}
	}
	return strings.Join(parts, ",")
}
