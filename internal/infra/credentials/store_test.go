package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token string
	err   error
	exec  struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestSignerKey(t *testing.T) {
	store := NewStore(&stubExecutor{token: " 4c0883a6 "})
	key, err := store.SignerKey(context.Background())
	if err != nil {
		t.Fatalf("SignerKey error: %v", err)
	}
	if key != "4c0883a6" {
		t.Fatalf("expected 4c0883a6, got %q", key)
	}
}

func TestSignerKey_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.SignerKey(context.Background())
	if err != nil {
		t.Fatalf("SignerKey error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestSignerKey_Error(t *testing.T) {
	store := NewStore(&stubExecutor{err: errors.New("connection refused")})
	if _, err := store.SignerKey(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSetSignerKey(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetSignerKey(context.Background(), "0xsecret", "0xA11CE"); err != nil {
		t.Fatalf("SetSignerKey error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
	raw, ok := exec.exec.args[2].([]byte)
	if !ok || string(raw) != `{"address":"0xA11CE"}` {
		t.Fatalf("unexpected properties %T %s", exec.exec.args[2], exec.exec.args[2])
	}
}

func TestSetSignerKeyEmpty(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetSignerKey(context.Background(), " 0x ", "0xA11CE"); err == nil {
		t.Fatal("expected error for empty key")
	}
}
