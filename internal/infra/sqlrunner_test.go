package infra

import (
	"errors"
	"strings"
	"testing"

	"donationledger/internal/sqlinline"
)

func TestExtractMarker(t *testing.T) {
	marker, body, err := extractMarker(sqlinline.QCountCampaignTransactions)
	if err != nil {
		t.Fatalf("extractMarker: %v", err)
	}
	if marker != "a658a2ef-d67f-4bfe-9135-4bc3db450aff" {
		t.Fatalf("marker = %q", marker)
	}
	if strings.Contains(body, "--sql") || !strings.Contains(body, "select count(*)") {
		t.Fatalf("body = %q", body)
	}
}

func TestExtractMarkerRejectsUnmarkedQueries(t *testing.T) {
	for _, q := range []string{
		"select 1",
		"--sql not-a-uuid\nselect 1",
		"-- sql 642d2274-ae6c-400c-b774-4b379dffda31\nselect 1",
	} {
		if _, _, err := extractMarker(q); !errors.Is(err, ErrMissingMarker) {
			t.Fatalf("%q: err = %v, want ErrMissingMarker", q, err)
		}
	}
	if _, _, err := extractMarker("   "); err == nil {
		t.Fatal("empty query should fail")
	}
}

func TestEveryInlineQueryCarriesMarker(t *testing.T) {
	queries := append([]string{
		sqlinline.QUpsertCampaign,
		sqlinline.QListMirroredCampaigns,
		sqlinline.QInsertCampaignTransaction,
		sqlinline.QCountCampaignTransactions,
		sqlinline.QSelectIntegrationToken,
		sqlinline.QUpsertIntegrationToken,
	}, sqlinline.SchemaStatements...)
	for _, q := range queries {
		if _, _, err := extractMarker(q); err != nil {
			t.Fatalf("query %q: %v", firstLine(q), err)
		}
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
