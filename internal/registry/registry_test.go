package registry

import (
	"math/big"
	"testing"

	"donationledger/internal/domain"
)

func TestRegisterIsIdempotent(t *testing.T) {
	r := New()
	first, created := r.Register("0xAbC", domain.Campaign{Name: "Clinic Fund", Owner: "0xowner"})
	if !created {
		t.Fatalf("first registration not reported as created")
	}
	if _, err := first.ApplyDonation(big.NewInt(5), "0xd", 1, "n1"); err != nil {
		t.Fatalf("ApplyDonation: %v", err)
	}

	again, created := r.Register("0xabc", domain.Campaign{Name: "Other", Owner: "0xother"})
	if created {
		t.Fatalf("duplicate registration reported as created")
	}
	if again != first {
		t.Fatalf("duplicate registration returned a different ledger")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	snap := r.List()[0]
	if snap.Name != "Clinic Fund" || snap.TotalDonations.Int64() != 5 {
		t.Fatalf("duplicate registration overwrote state: %+v", snap)
	}
}

func TestListKeepsRegistrationOrder(t *testing.T) {
	r := New()
	for _, id := range []string{"0x3", "0x1", "0x2"} {
		r.Register(id, domain.Campaign{Name: id})
	}
	list := r.List()
	want := []string{"0x3", "0x1", "0x2"}
	for i, c := range list {
		if c.ID != want[i] {
			t.Fatalf("List()[%d].ID = %q, want %q", i, c.ID, want[i])
		}
	}
}

func TestGetUnknown(t *testing.T) {
	r := New()
	if _, ok := r.Get("0xnope"); ok {
		t.Fatalf("Get returned a ledger for an unknown id")
	}
}
