// Package currency provides the typed registry of currencies the pool pays
// out in, with lookups by name, address-version byte, or a concrete address.
package currency

import (
	"sort"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/lucidpool/dashd/internal/config"
	"github.com/lucidpool/dashd/pkg/errors"
)

// payoutAddressLength is the only address length the pool accepts.
const payoutAddressLength = 34

// Currency describes one configured currency.
type Currency struct {
	Name         string
	Versions     []byte
	Exchangeable bool
}

// Registry resolves currencies by name and by base58 address-version byte.
type Registry struct {
	byName    map[string]Currency
	byVersion map[byte]Currency
}

// NewRegistry builds a registry from configuration seeds. Duplicate names or
// version bytes are configuration mistakes and fail construction.
func NewRegistry(seeds []config.CurrencySeed) (*Registry, error) {
	r := &Registry{
		byName:    make(map[string]Currency, len(seeds)),
		byVersion: make(map[byte]Currency),
	}

	for _, seed := range seeds {
		if _, exists := r.byName[seed.Name]; exists {
			return nil, errors.New(errors.ErrorTypeInternal, "registry_build",
				"duplicate currency name").WithContext("currency", seed.Name)
		}

		curr := Currency{
			Name:         seed.Name,
			Versions:     append([]byte(nil), seed.Versions...),
			Exchangeable: seed.Exchangeable,
		}
		r.byName[curr.Name] = curr

		for _, ver := range curr.Versions {
			if _, exists := r.byVersion[ver]; exists {
				return nil, errors.New(errors.ErrorTypeInternal, "registry_build",
					"duplicate address version").
					WithContext("currency", seed.Name).
					WithContext("version", int(ver))
			}
			r.byVersion[ver] = curr
		}
	}

	return r, nil
}

// ByName looks up a currency by its configured name.
func (r *Registry) ByName(name string) (Currency, error) {
	curr, ok := r.byName[name]
	if !ok {
		return Currency{}, errors.New(errors.ErrorTypeValidation, "currency_lookup",
			"unknown currency").WithContext("currency", name)
	}
	return curr, nil
}

// ByVersion looks up a currency by an address-version byte.
func (r *Registry) ByVersion(version byte) (Currency, error) {
	curr, ok := r.byVersion[version]
	if !ok {
		return Currency{}, errors.New(errors.ErrorTypeValidation, "currency_lookup",
			"address version does not match a configured currency").
			WithContext("version", int(version))
	}
	return curr, nil
}

// ByAddress decodes a base58check address and resolves the currency its
// version byte belongs to. The checksum is verified as part of decoding.
func (r *Registry) ByAddress(address string) (Currency, error) {
	_, version, err := base58.CheckDecode(address)
	if err != nil {
		return Currency{}, errors.Wrap(err, errors.ErrorTypeValidation, "currency_lookup",
			"address failed base58check decoding")
	}
	return r.ByVersion(version)
}

// ValidateAddress checks a payout address: exact length, valid checksum, and
// a version byte that maps to a configured currency.
func (r *Registry) ValidateAddress(address string) (Currency, error) {
	if len(address) != payoutAddressLength {
		return Currency{}, errors.New(errors.ErrorTypeValidation, "validate_address",
			"invalid currency address").
			WithContext("length", len(address))
	}
	curr, err := r.ByAddress(address)
	if err != nil {
		return Currency{}, errors.New(errors.ErrorTypeValidation, "validate_address",
			"invalid currency address")
	}
	return curr, nil
}

// PayoutCurrencies returns the exchangeable currencies, sorted by name for
// stable display order.
func (r *Registry) PayoutCurrencies() []Currency {
	var out []Currency
	for _, curr := range r.byName {
		if curr.Exchangeable {
			out = append(out, curr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
