package node

import (
	"context"
	"fmt"

	zmq "github.com/pebbe/zmq4"

	"github.com/lucidpool/dashd/pkg/log"
)

// BlockNotifier subscribes to the coin node's hashblock ZMQ feed. Each
// notification marks the end of a round: the stats daemon records the block
// and rolls the live share counter over.
type BlockNotifier struct {
	socket   *zmq.Socket
	endpoint string
	logger   *log.Logger
}

// NewBlockNotifier creates a ZMQ subscriber for block notifications.
func NewBlockNotifier(endpoint string, logger *log.Logger) (*BlockNotifier, error) {
	socket, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ socket: %w", err)
	}

	return &BlockNotifier{
		socket:   socket,
		endpoint: endpoint,
		logger:   logger.WithComponent("zmq"),
	}, nil
}

// Connect connects and subscribes to the hashblock topic.
func (n *BlockNotifier) Connect() error {
	if err := n.socket.SetSubscribe("hashblock"); err != nil {
		return fmt.Errorf("failed to subscribe to hashblock: %w", err)
	}
	if err := n.socket.Connect(n.endpoint); err != nil {
		return fmt.Errorf("failed to connect to ZMQ endpoint %s: %w", n.endpoint, err)
	}
	n.logger.Info("connected to ZMQ endpoint", "endpoint", n.endpoint)
	return nil
}

// Listen receives block notifications until the context is cancelled,
// invoking onBlock with each block hash in display byte order. Handler
// errors are logged and the loop keeps going; a missed rollover is
// recoverable, a dead listener is not.
func (n *BlockNotifier) Listen(ctx context.Context, onBlock func(blockHash string) error) error {
	n.logger.Info("starting block notification listener")

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("block notification listener stopping")
			return ctx.Err()
		default:
		}

		msg, err := n.socket.RecvMessageBytes(zmq.DONTWAIT)
		if err != nil {
			if err.Error() == "resource temporarily unavailable" {
				continue
			}
			n.logger.WithError(err).Error("failed to receive ZMQ message")
			continue
		}

		if len(msg) < 2 {
			n.logger.Warn("received malformed ZMQ message", "parts", len(msg))
			continue
		}

		topic := string(msg[0])
		if topic != "hashblock" {
			n.logger.Warn("unexpected ZMQ topic", "topic", topic)
			continue
		}
		if len(msg[1]) != 32 {
			n.logger.Warn("invalid block hash length", "length", len(msg[1]))
			continue
		}

		blockHash := reverseHex(msg[1])
		n.logger.Info("new block notification", "hash", blockHash)

		if err := onBlock(blockHash); err != nil {
			n.logger.WithError(err).Error("failed to handle block notification", "hash", blockHash)
		}
	}
}

// Close closes the ZMQ socket.
func (n *BlockNotifier) Close() error {
	if n.socket != nil {
		return n.socket.Close()
	}
	return nil
}

// reverseHex reverses bytes and converts to hex string. ZMQ delivers hashes
// in wire order; everything user-facing uses display order.
func reverseHex(data []byte) string {
	reversed := make([]byte, len(data))
	for i := 0; i < len(data); i++ {
		reversed[i] = data[len(data)-1-i]
	}
	return fmt.Sprintf("%x", reversed)
}
