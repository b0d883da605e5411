// Package node talks to the coin node: the JSON-RPC client the signed
// command pipeline uses as its signature-verification oracle, and the ZMQ
// subscriber that feeds block-find notifications to the round rollover.
package node

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/lucidpool/dashd/pkg/circuit"
	"github.com/lucidpool/dashd/pkg/errors"
	"github.com/lucidpool/dashd/pkg/retry"
)

// RPCClient wraps the coin node's JSON-RPC API. Signature verification goes
// through RawRequest rather than the typed helper because altcoin address
// versions do not decode under Bitcoin chain parameters; the node itself is
// the authority on what its addresses look like.
type RPCClient struct {
	client         *rpcclient.Client
	circuitBreaker *circuit.Breaker
	retryConfig    *retry.Config
}

// NewRPCClient creates a coin node RPC client in HTTP POST mode, the typical
// configuration for a local node with TLS disabled.
func NewRPCClient(host string, port int, username, password string) (*RPCClient, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         fmt.Sprintf("%s:%d", host, port),
		User:         username,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "rpc_client_creation",
			"failed to create coin node RPC client").
			WithContext("host", host).
			WithContext("port", port)
	}

	cbConfig := &circuit.Config{
		MaxFailures:     3,
		SuccessRequired: 2,
		Timeout:         10 * time.Second,
		ResetTimeout:    30 * time.Second,
	}

	return &RPCClient{
		client:         client,
		circuitBreaker: circuit.New(cbConfig),
		retryConfig:    retry.NetworkConfig(),
	}, nil
}

// Close shuts down the RPC client.
func (c *RPCClient) Close() {
	c.client.Shutdown()
}

// VerifyMessage asks the node whether signature proves that address's key
// signed message. Runs under the circuit breaker but never retries: a
// command rejection is terminal and a transient fault is surfaced to the
// user as such. An explicit node-side error becomes an oracle rejection
// carrying the node's reason; anything else is a communication fault.
func (c *RPCClient) VerifyMessage(ctx context.Context, address, signature, message string) (bool, error) {
	return circuit.ExecuteWithResult(ctx, c.circuitBreaker, func() (bool, error) {
		params, err := marshalParams(address, signature, message)
		if err != nil {
			return false, errors.Wrap(err, errors.ErrorTypeInternal, "verify_message",
				"failed to encode verifymessage parameters")
		}

		raw, err := c.client.RawRequest("verifymessage", params)
		if err != nil {
			var rpcErr *btcjson.RPCError
			if stderrors.As(err, &rpcErr) {
				return false, errors.New(errors.ErrorTypeOracleRejected, "verify_message",
					fmt.Sprintf("Rejected by RPC server for reason %s!", rpcErr.Message)).
					WithContext("rpc_code", int(rpcErr.Code))
			}
			return false, errors.Wrap(err, errors.ErrorTypeNetwork, "verify_message",
				"verifymessage request failed")
		}

		var verified bool
		if err := json.Unmarshal(raw, &verified); err != nil {
			return false, errors.Wrap(err, errors.ErrorTypeNetwork, "verify_message",
				"unexpected verifymessage response")
		}
		return verified, nil
	})
}

// GetBlockCount gets the current block height, used when recording a found
// block from a ZMQ notification.
func (c *RPCClient) GetBlockCount(ctx context.Context) (int64, error) {
	return circuit.ExecuteWithResult(ctx, c.circuitBreaker, func() (int64, error) {
		return retry.DoWithResult(ctx, c.retryConfig, func() (int64, error) {
			count, err := c.client.GetBlockCountAsync().Receive()
			if err != nil {
				return 0, errors.Wrap(err, errors.ErrorTypeNetwork, "get_block_count",
					"failed to retrieve current block height")
			}
			return count, nil
		})
	})
}

// Ping tests node connectivity.
func (c *RPCClient) Ping(ctx context.Context) error {
	return c.circuitBreaker.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			if err := c.client.PingAsync().Receive(); err != nil {
				return errors.Wrap(err, errors.ErrorTypeNetwork, "ping",
					"coin node connectivity check failed")
			}
			return nil
		})
	})
}

func marshalParams(params ...string) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(params))
	for i, p := range params {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}
