package currency

import (
	"testing"

	"github.com/lucidpool/dashd/internal/config"
	"github.com/lucidpool/dashd/pkg/errors"
)

// Genesis coinbase address: version byte 0, valid checksum, 34 characters.
const validBTCAddress = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry([]config.CurrencySeed{
		{Name: "BTC", Versions: []byte{0}, Exchangeable: true},
		{Name: "DOGE", Versions: []byte{30}, Exchangeable: false},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return r
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name  string
		seeds []config.CurrencySeed
	}{
		{
			name: "duplicate name",
			seeds: []config.CurrencySeed{
				{Name: "BTC", Versions: []byte{0}},
				{Name: "BTC", Versions: []byte{5}},
			},
		},
		{
			name: "duplicate version",
			seeds: []config.CurrencySeed{
				{Name: "BTC", Versions: []byte{0}},
				{Name: "FAKE", Versions: []byte{0}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.seeds); err == nil {
				t.Error("expected construction to fail")
			}
		})
	}
}

func TestByName(t *testing.T) {
	r := testRegistry(t)

	curr, err := r.ByName("BTC")
	if err != nil {
		t.Fatalf("ByName(BTC) error = %v", err)
	}
	if curr.Name != "BTC" || !curr.Exchangeable {
		t.Errorf("ByName(BTC) = %+v", curr)
	}

	if _, err := r.ByName("XMR"); !errors.IsType(err, errors.ErrorTypeValidation) {
		t.Errorf("unknown currency error = %v, want validation error", err)
	}
}

func TestByVersion(t *testing.T) {
	r := testRegistry(t)

	curr, err := r.ByVersion(30)
	if err != nil {
		t.Fatalf("ByVersion(30) error = %v", err)
	}
	if curr.Name != "DOGE" {
		t.Errorf("ByVersion(30).Name = %q, want DOGE", curr.Name)
	}

	if _, err := r.ByVersion(111); err == nil {
		t.Error("expected error for unconfigured version")
	}
}

func TestByAddress(t *testing.T) {
	r := testRegistry(t)

	curr, err := r.ByAddress(validBTCAddress)
	if err != nil {
		t.Fatalf("ByAddress() error = %v", err)
	}
	if curr.Name != "BTC" {
		t.Errorf("ByAddress().Name = %q, want BTC", curr.Name)
	}

	if _, err := r.ByAddress("not-base58-???"); err == nil {
		t.Error("expected error for undecodable address")
	}
}

func TestValidateAddress(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{"valid", validBTCAddress, false},
		{"wrong length", "1A1zP1eP5QGefi2DMPTfTL5SLmv7Divf", true},
		{"bad checksum at valid length", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ValidateAddress(tt.address)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
			}
			if err != nil && !errors.IsType(err, errors.ErrorTypeValidation) {
				t.Errorf("error should carry the validation type, got %v", err)
			}
		})
	}
}

func TestPayoutCurrencies(t *testing.T) {
	r := testRegistry(t)

	payout := r.PayoutCurrencies()
	if len(payout) != 1 || payout[0].Name != "BTC" {
		t.Errorf("PayoutCurrencies() = %+v, want only BTC", payout)
	}
}
