package command

import (
	"context"
	"testing"
	"time"

	"github.com/lucidpool/dashd/pkg/errors"
	"github.com/lucidpool/dashd/pkg/log"
)

const signedMessage = "SETADDR BTC 1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa\t" +
	"Generated at 2024-01-01 00:00:00.000 UTC\tOnly valid for PoolSite"

type fakeOracle struct {
	result  bool
	err     error
	address string
	sig     string
	message string
	calls   int
}

func (o *fakeOracle) VerifyMessage(_ context.Context, address, signature, message string) (bool, error) {
	o.calls++
	o.address = address
	o.sig = signature
	o.message = message
	return o.result, o.err
}

type fakeStore struct {
	err     error
	address string
	update  Update
	calls   int
}

func (s *fakeStore) UpdateSettings(_ context.Context, address string, update Update) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.address = address
	s.update = update
	return nil
}

func newTestAuthorizer(t *testing.T, oracle *fakeOracle, store *fakeStore) *Authorizer {
	t.Helper()
	a := NewAuthorizer("PoolSite", 90660*time.Second, testRegistry(t),
		oracle, store, log.New("command-test", "test", "error", "text"))
	// Hold the clock one hour past the fixture message's stamp.
	a.now = func() time.Time {
		return time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	}
	return a
}

func TestAuthorizeCommitsValidCommand(t *testing.T) {
	oracle := &fakeOracle{result: true}
	store := &fakeStore{}
	a := newTestAuthorizer(t, oracle, store)

	if err := a.Authorize(context.Background(), validBTCAddress, signedMessage, "sig=="); err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}

	if oracle.address != validBTCAddress || oracle.sig != "sig==" {
		t.Errorf("oracle saw (%q, %q)", oracle.address, oracle.sig)
	}
	if oracle.message != signedMessage {
		t.Errorf("oracle message = %q, want unchanged (no escapes present)", oracle.message)
	}
	if store.calls != 1 || store.address != validBTCAddress {
		t.Fatalf("store calls = %d, address = %q", store.calls, store.address)
	}
	if got := store.update.SetAddrs["BTC"]; got != validBTCAddress {
		t.Errorf("committed SetAddrs[BTC] = %q", got)
	}
	if !store.update.Donation.IsZero() {
		t.Errorf("committed Donation = %v, want 0", store.update.Donation)
	}
}

func TestAuthorizeDecodesEscapesForOracle(t *testing.T) {
	// Browsers occasionally submit backslash sequences where the signed
	// text had control characters. The node must see the decoded bytes or
	// the signature check fails on a message the user really did sign.
	raw := `DELADDR DOGE\n` + "\tGenerated at 2024-01-01 00:00:00.000 UTC\t" +
		"Only valid for PoolSite"
	want := "DELADDR DOGE\n\tGenerated at 2024-01-01 00:00:00.000 UTC\t" +
		"Only valid for PoolSite"

	oracle := &fakeOracle{result: true}
	a := newTestAuthorizer(t, oracle, &fakeStore{})

	if err := a.Authorize(context.Background(), validBTCAddress, raw, "sig=="); err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if oracle.message != want {
		t.Errorf("oracle message = %q, want %q", oracle.message, want)
	}
}

func TestAuthorizeRejections(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		oracle   *fakeOracle
		store    *fakeStore
		wantType errors.ErrorType
		wantMsg  string
	}{
		{
			name:     "no timestamp",
			message:  "SETDONATE 5\tOnly valid for PoolSite",
			oracle:   &fakeOracle{result: true},
			wantType: errors.ErrorTypeParse,
			wantMsg:  msgNoStamp,
		},
		{
			name: "stale message",
			message: "SETDONATE 5\tGenerated at 2023-12-30 00:00:00.000 UTC\t" +
				"Only valid for PoolSite",
			oracle:   &fakeOracle{result: true},
			wantType: errors.ErrorTypeExpired,
			wantMsg:  msgExpired,
		},
		{
			name: "far future message",
			message: "SETDONATE 5\tGenerated at 2024-01-03 00:00:00.000 UTC\t" +
				"Only valid for PoolSite",
			oracle:   &fakeOracle{result: true},
			wantType: errors.ErrorTypeExpired,
			wantMsg:  msgExpired,
		},
		{
			name: "wrong site",
			message: "SETDONATE 5\tGenerated at 2024-01-01 00:00:00.000 UTC\t" +
				"Only valid for OtherPool",
			oracle:   &fakeOracle{result: true},
			wantType: errors.ErrorTypeSiteMismatch,
			wantMsg:  msgWrongSite,
		},
		{
			name:     "signature refused",
			message:  signedMessage,
			oracle:   &fakeOracle{result: false},
			wantType: errors.ErrorTypeOracleRejected,
			wantMsg:  msgBadSignature,
		},
		{
			name:    "node rejection passes through",
			message: signedMessage,
			oracle: &fakeOracle{err: errors.New(errors.ErrorTypeOracleRejected,
				"verify_message", "Rejected by RPC server for reason malformed base64!")},
			wantType: errors.ErrorTypeOracleRejected,
			wantMsg:  "Rejected by RPC server for reason malformed base64!",
		},
		{
			name:     "node unreachable",
			message:  signedMessage,
			oracle:   &fakeOracle{err: errors.New(errors.ErrorTypeNetwork, "verify_message", "connection refused")},
			wantType: errors.ErrorTypeOracleUnavailable,
			wantMsg:  msgOracleDown,
		},
		{
			name: "invalid address",
			message: "SETADDR BTC shortaddr\tGenerated at 2024-01-01 00:00:00.000 UTC\t" +
				"Only valid for PoolSite",
			oracle:   &fakeOracle{result: true},
			wantType: errors.ErrorTypeValidation,
			wantMsg:  msgBadAddress,
		},
		{
			name:    "settings write fails",
			message: signedMessage,
			oracle:  &fakeOracle{result: true},
			store: &fakeStore{err: errors.New(errors.ErrorTypeDatabase,
				"update_settings", "deadlock detected")},
			wantType: errors.ErrorTypePersistence,
			wantMsg:  msgSaveFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store
			if store == nil {
				store = &fakeStore{}
			}
			a := newTestAuthorizer(t, tt.oracle, store)

			err := a.Authorize(context.Background(), validBTCAddress, tt.message, "sig==")
			if err == nil {
				t.Fatal("Authorize() succeeded, want rejection")
			}
			if !errors.IsType(err, tt.wantType) {
				t.Fatalf("error = %v, want type %v", err, tt.wantType)
			}

			se, ok := err.(*errors.ServiceError)
			if !ok {
				t.Fatalf("error %T is not a ServiceError", err)
			}
			if se.UserMessage() != tt.wantMsg {
				t.Errorf("message = %q, want %q", se.UserMessage(), tt.wantMsg)
			}
			if se.IsRetryable() {
				t.Error("command rejections must not be retryable")
			}

			if tt.store == nil && store.calls != 0 {
				t.Errorf("store written %d times on a rejected command", store.calls)
			}
		})
	}
}

func TestAuthorizeAcceptsNearFutureStamp(t *testing.T) {
	// The freshness bound is an absolute difference, so a stamp a few hours
	// ahead of the server clock is still inside the window.
	message := "SETDONATE 5\tGenerated at 2024-01-01 12:00:00.000 UTC\t" +
		"Only valid for PoolSite"
	a := newTestAuthorizer(t, &fakeOracle{result: true}, &fakeStore{})

	if err := a.Authorize(context.Background(), validBTCAddress, message, "sig=="); err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
}
