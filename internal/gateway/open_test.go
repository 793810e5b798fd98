package gateway

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"donationledger/internal/infra"
)

func TestOpenMemorySeedsSampleCampaign(t *testing.T) {
	cfg := &infra.Config{
		LedgerMode:     infra.LedgerModeMemory,
		MemoryActor:    "0x00000000000000000000000000000000000a11ce",
		MemorySeedName: "Sample Campaign",
	}
	opened, err := Open(context.Background(), cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer opened.Close()

	if got := opened.Gateway.Actor(); got != cfg.MemoryActor {
		t.Fatalf("actor = %q", got)
	}
	bulk, err := opened.Gateway.ReadAllCampaigns(context.Background())
	if err != nil {
		t.Fatalf("ReadAllCampaigns: %v", err)
	}
	if len(bulk.Campaigns) != 1 || bulk.Campaigns[0].Name != "Sample Campaign" {
		t.Fatalf("campaigns = %+v", bulk.Campaigns)
	}
}

func TestOpenMemoryWithoutSeed(t *testing.T) {
	cfg := &infra.Config{LedgerMode: infra.LedgerModeMemory, MemoryActor: "0x1"}
	opened, err := Open(context.Background(), cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	bulk, err := opened.Gateway.ReadAllCampaigns(context.Background())
	if err != nil {
		t.Fatalf("ReadAllCampaigns: %v", err)
	}
	if len(bulk.Campaigns) != 0 {
		t.Fatalf("campaigns = %+v", bulk.Campaigns)
	}
}

func TestOpenRejectsUnknownMode(t *testing.T) {
	_, err := Open(context.Background(), &infra.Config{LedgerMode: "carrier-pigeon"}, nil, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error")
	}
}
