package command

import (
	"context"
	"time"

	"github.com/lucidpool/dashd/internal/currency"
	"github.com/lucidpool/dashd/pkg/errors"
	"github.com/lucidpool/dashd/pkg/log"
)

const (
	msgExpired      = "Signature/Message is too old to be accepted! Generate a new message & try again."
	msgWrongSite    = "Invalid website! Generate a new message & try again."
	msgOracleDown   = "Unable to communicate with coinserver!"
	msgBadSignature = "Invalid signature! Coinserver returned false"
	msgSaveFailed   = "Error saving new settings to the database!"
)

// Oracle proves that an address's private key signed a message. The one
// implementation asks the coin node over RPC; an explicit node-side rejection
// surfaces as ErrorTypeOracleRejected with the node's reason, anything else
// as a communication fault.
type Oracle interface {
	VerifyMessage(ctx context.Context, address, signature, message string) (bool, error)
}

// SettingsStore commits a validated settings update atomically: every field
// of the user's settings row lands together or the store rolls back.
type SettingsStore interface {
	UpdateSettings(ctx context.Context, address string, update Update) error
}

// Authorizer runs the full signed-command pipeline. Every failure is
// terminal for that call: nothing is committed and the error carries the
// user-facing reason.
type Authorizer struct {
	siteIdentity string
	maxAge       time.Duration
	registry     *currency.Registry
	oracle       Oracle
	store        SettingsStore
	logger       *log.Logger
	now          func() time.Time
}

// NewAuthorizer wires the command pipeline together.
func NewAuthorizer(siteIdentity string, maxAge time.Duration, registry *currency.Registry,
	oracle Oracle, store SettingsStore, logger *log.Logger) *Authorizer {
	return &Authorizer{
		siteIdentity: siteIdentity,
		maxAge:       maxAge,
		registry:     registry,
		oracle:       oracle,
		store:        store,
		logger:       logger.WithComponent("authorizer"),
		now:          time.Now,
	}
}

// Authorize parses, checks, verifies, validates, and commits one signed
// command for an address. The freshness check uses the absolute difference
// from now, so a message stamped in the future is accepted up to the same
// bound as one stamped in the past.
func (a *Authorizer) Authorize(ctx context.Context, address, message, signature string) error {
	a.logger.LogCommandAttempt(address, len(message))

	err := a.authorize(ctx, address, message, signature)
	if err != nil {
		a.logger.WithUser(address).WithError(err).Info("signed command rejected")
		a.logger.LogCommandResult(address, "rejected")
		return err
	}

	a.logger.LogCommandResult(address, "committed")
	return nil
}

func (a *Authorizer) authorize(ctx context.Context, address, message, signature string) error {
	cmd, err := Parse(message)
	if err != nil {
		return err
	}

	if !cmd.HasStamp {
		return errors.New(errors.ErrorTypeParse, "authorize_command", msgNoStamp)
	}

	age := a.now().UTC().Sub(cmd.Stamp.UTC())
	if age < 0 {
		age = -age
	}
	if age > a.maxAge {
		return errors.New(errors.ErrorTypeExpired, "authorize_command", msgExpired).
			WithContext("stamp", cmd.Stamp).
			WithContext("max_age", a.maxAge.String())
	}

	if cmd.Site == "" || cmd.Site != a.siteIdentity {
		return errors.New(errors.ErrorTypeSiteMismatch, "authorize_command", msgWrongSite).
			WithContext("site", cmd.Site)
	}

	ok, err := a.oracle.VerifyMessage(ctx, address, signature, decodeEscapes(message))
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeOracleRejected) {
			return err
		}
		a.logger.WithUser(address).WithError(err).Error("signature verification unreachable")
		unavailable := errors.New(errors.ErrorTypeOracleUnavailable, "authorize_command", msgOracleDown)
		unavailable.Cause = err
		return unavailable
	}
	if !ok {
		return errors.New(errors.ErrorTypeOracleRejected, "authorize_command", msgBadSignature)
	}

	update, err := cmd.Validate(a.registry)
	if err != nil {
		return err
	}

	if err := a.store.UpdateSettings(ctx, address, update); err != nil {
		return errors.Wrap(err, errors.ErrorTypePersistence, "authorize_command", msgSaveFailed)
	}
	return nil
}
