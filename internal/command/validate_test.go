package command

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lucidpool/dashd/internal/config"
	"github.com/lucidpool/dashd/internal/currency"
	"github.com/lucidpool/dashd/pkg/errors"
)

const validBTCAddress = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

func testRegistry(t *testing.T) *currency.Registry {
	t.Helper()
	reg, err := currency.NewRegistry([]config.CurrencySeed{
		{Name: "BTC", Versions: []byte{0}, Exchangeable: true},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func TestValidateAddresses(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{"valid address", validBTCAddress, false},
		{"wrong length", "1A1zP1eP5QGefi2DMPTfTL5SLmv7Divf", true},
		{"bad checksum", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb", true},
		{"garbage", "not-an-address-but-34-chars-long!!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &Command{
				SetAddrs: map[string]string{"BTC": tt.address},
				Donation: "0",
			}

			_, err := cmd.Validate(testRegistry(t))
			if tt.wantErr {
				if !errors.IsType(err, errors.ErrorTypeValidation) {
					t.Fatalf("Validate() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}

func TestValidateDonation(t *testing.T) {
	tests := []struct {
		name     string
		donation string
		want     string
		wantMsg  string
	}{
		{"zero boundary", "0", "0", ""},
		{"hundred boundary", "100", "1", ""},
		{"typical", "2.5", "0.025", ""},
		{"rounds to two places", "2.499", "0.025", ""},
		{"negative", "-1", "", msgDonationBounds},
		{"over hundred", "100.01", "", msgDonationBounds},
		{"not a number", "lots", "", msgBadDonation},
		{"empty", "", "", msgBadDonation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &Command{SetAddrs: map[string]string{}, Donation: tt.donation}

			update, err := cmd.Validate(testRegistry(t))
			if tt.wantMsg != "" {
				se, ok := err.(*errors.ServiceError)
				if !ok {
					t.Fatalf("Validate() error = %v, want ServiceError", err)
				}
				if se.UserMessage() != tt.wantMsg {
					t.Errorf("message = %q, want %q", se.UserMessage(), tt.wantMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if !update.Donation.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Donation = %v, want %v", update.Donation, tt.want)
			}
		})
	}
}

func TestValidateDeletionsPassThrough(t *testing.T) {
	cmd := &Command{
		SetAddrs: map[string]string{},
		DelAddrs: []string{"DOGE", "NOTACOIN"},
		Donation: "0",
	}

	update, err := cmd.Validate(testRegistry(t))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(update.DelAddrs) != 2 {
		t.Errorf("DelAddrs = %v, want both deletions kept", update.DelAddrs)
	}
}
