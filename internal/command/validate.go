package command

import (
	"github.com/shopspring/decimal"

	"github.com/lucidpool/dashd/internal/currency"
	"github.com/lucidpool/dashd/pkg/errors"
)

const (
	msgBadAddress     = "Invalid currency address passed!"
	msgBadDonation    = "Donate percentage unable to be converted to a decimal!"
	msgDonationBounds = "Donate percentage was out of bounds!"
)

// Update is a fully validated settings change, ready to commit. Donation is
// the fraction in [0, 1], not the percentage the user typed.
type Update struct {
	SetAddrs  map[string]string
	DelAddrs  []string
	Donation  decimal.Decimal
	Anonymous bool
}

var oneHundred = decimal.NewFromInt(100)

// Validate checks the parsed command against the currency registry and
// converts the donation percentage to a fraction. Address deletions and the
// anonymity flag need no checks beyond parsing: deleting an address that was
// never set is indistinguishable from a valid deletion and commits as a
// no-op.
func (c *Command) Validate(registry *currency.Registry) (Update, error) {
	for _, addr := range c.SetAddrs {
		if _, err := registry.ValidateAddress(addr); err != nil {
			return Update{}, errors.New(errors.ErrorTypeValidation, "validate_command", msgBadAddress).
				WithContext("address", addr)
		}
	}

	percent, err := decimal.NewFromString(c.Donation)
	if err != nil {
		return Update{}, errors.New(errors.ErrorTypeValidation, "validate_command", msgBadDonation).
			WithContext("donation", c.Donation)
	}

	fraction := percent.Round(2).Div(oneHundred)
	if fraction.IsNegative() || fraction.GreaterThan(decimal.NewFromInt(1)) {
		return Update{}, errors.New(errors.ErrorTypeValidation, "validate_command", msgDonationBounds).
			WithContext("donation", c.Donation)
	}

	return Update{
		SetAddrs:  c.SetAddrs,
		DelAddrs:  c.DelAddrs,
		Donation:  fraction,
		Anonymous: c.Anonymous,
	}, nil
}
