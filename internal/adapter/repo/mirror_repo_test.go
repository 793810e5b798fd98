package repo

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"donationledger/internal/domain"
	"donationledger/internal/sqlinline"
)

type execCall struct {
	query string
	args  []any
}

type stubSQL struct {
	execs []execCall
	count int
	rows  [][]string
	err   error
}

func (s *stubSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	return pgconn.CommandTag{}, s.err
}

func (s *stubSQL) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return countRow{n: s.count, err: s.err}
}

func (s *stubSQL) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &stubRows{data: s.rows, idx: -1}, nil
}

type countRow struct {
	n   int
	err error
}

func (r countRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int)) = r.n
	return nil
}

type stubRows struct {
	data [][]string
	idx  int
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, errors.New("not implemented") }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	r.idx++
	return r.idx < len(r.data)
}

func (r *stubRows) Scan(dest ...any) error {
	row := r.data[r.idx]
	for i, d := range dest {
		*(d.(*string)) = row[i]
	}
	return nil
}

func TestEnsureSchemaRunsEveryStatement(t *testing.T) {
	sql := &stubSQL{}
	if err := NewMirrorRepository(sql).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if len(sql.execs) != len(sqlinline.SchemaStatements) {
		t.Fatalf("executed %d statements, want %d", len(sql.execs), len(sqlinline.SchemaStatements))
	}
	for _, call := range sql.execs {
		if !strings.HasPrefix(call.query, "--sql ") {
			t.Fatalf("statement without marker: %q", call.query)
		}
	}
}

func TestUpsertCampaignSendsDecimalText(t *testing.T) {
	sql := &stubSQL{}
	wei, _ := new(big.Int).SetString("2000000000000000000", 10)
	err := NewMirrorRepository(sql).UpsertCampaign(context.Background(), domain.Campaign{
		ID:             "0xC1",
		Name:           "Clinic Fund",
		Owner:          "0xowner",
		TotalDonations: wei,
	})
	if err != nil {
		t.Fatalf("UpsertCampaign: %v", err)
	}
	args := sql.execs[0].args
	if args[3] != "2000000000000000000" || args[4] != "0" {
		t.Fatalf("amount args = %v %v", args[3], args[4])
	}
}

func TestInsertCreationRecordHasNoAmount(t *testing.T) {
	sql := &stubSQL{}
	err := NewMirrorRepository(sql).InsertTransaction(context.Background(), "0xc1", domain.TransactionRecord{
		ID:        "0xabc:0",
		Actor:     "0xowner",
		Kind:      domain.TransactionCampaignCreation,
		Timestamp: 1700000000,
	})
	if err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	args := sql.execs[0].args
	if args[3] != "campaign_creation" || args[4] != "" || args[5] != int64(1700000000) {
		t.Fatalf("args = %v", args)
	}
}

func TestCountTransactions(t *testing.T) {
	n, err := NewMirrorRepository(&stubSQL{count: 4}).CountTransactions(context.Background(), "0xc1")
	if err != nil || n != 4 {
		t.Fatalf("CountTransactions = %d, %v", n, err)
	}
	n, err = NewMirrorRepository(&stubSQL{err: pgx.ErrNoRows}).CountTransactions(context.Background(), "0xc1")
	if err != nil || n != 0 {
		t.Fatalf("CountTransactions without rows = %d, %v", n, err)
	}
}

func TestListCampaignsParsesAmounts(t *testing.T) {
	sql := &stubSQL{rows: [][]string{
		{"0xc1", "Clinic Fund", "0xowner", "2000000000000000000", "500"},
	}}
	items, err := NewMirrorRepository(sql).ListCampaigns(context.Background())
	if err != nil {
		t.Fatalf("ListCampaigns: %v", err)
	}
	if len(items) != 1 || items[0].TotalDonations.String() != "2000000000000000000" || items[0].Balance.Int64() != 500 {
		t.Fatalf("items = %+v", items)
	}

	sql.rows = [][]string{{"0xc1", "Clinic Fund", "0xowner", "abc", "0"}}
	if _, err := NewMirrorRepository(sql).ListCampaigns(context.Background()); err == nil {
		t.Fatal("expected error for malformed amount")
	}
}
