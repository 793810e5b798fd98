package policy

import (
	"testing"

	"donationledger/internal/domain"
)

func TestCanWithdraw(t *testing.T) {
	campaign := domain.Campaign{ID: "0xc", Owner: "0xAbCd000000000000000000000000000000000001"}
	tests := []struct {
		name  string
		actor string
		want  bool
	}{
		{name: "owner", actor: "0xAbCd000000000000000000000000000000000001", want: true},
		{name: "owner different case", actor: "0xabcd000000000000000000000000000000000001", want: true},
		{name: "non owner", actor: "0x0000000000000000000000000000000000000002", want: false},
		{name: "second non owner", actor: "0x0000000000000000000000000000000000000003", want: false},
		{name: "empty actor", actor: "", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanWithdraw(tc.actor, campaign); got != tc.want {
				t.Fatalf("CanWithdraw(%q) = %v, want %v", tc.actor, got, tc.want)
			}
		})
	}
}

func TestCanWithdrawWithoutOwner(t *testing.T) {
	if CanWithdraw("", domain.Campaign{}) {
		t.Fatalf("empty owner must never match")
	}
}

func TestCanDonate(t *testing.T) {
	campaign := domain.Campaign{Owner: "0xowner"}
	for _, actor := range []string{"0xowner", "0xsomeone", ""} {
		if !CanDonate(actor, campaign) {
			t.Fatalf("CanDonate(%q) = false", actor)
		}
	}
}

func TestCanUnknownAction(t *testing.T) {
	if Can("0xowner", Action(99), domain.Campaign{Owner: "0xowner"}) {
		t.Fatalf("unknown action permitted")
	}
}
