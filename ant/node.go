package ant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ResponseTimeout bounds how long Request waits for a reply.
const ResponseTimeout = 2 * time.Second

// Node drives an ANT stick over a raw byte transport.
//
// The transport's Read must return periodically (a read timeout yielding
// zero bytes is fine) so that Run can observe context cancellation.
type Node struct {
	rw     io.ReadWriter
	key    NetworkKey
	framer Framer
	buf    []byte
	mu     sync.Mutex // serializes writes
}

// NewNode creates a node on top of the given transport.
func NewNode(rw io.ReadWriter, key NetworkKey) *Node {
	return &Node{
		rw:  rw,
		key: key,
		buf: make([]byte, 64),
	}
}

// Write sends one encoded message to the stick.
func (n *Node) Write(msg []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := n.rw.Write(msg)
	if err != nil {
		return fmt.Errorf("failed to write message 0x%02x: %w", msg[IndexMsgType], err)
	}
	return nil
}

// Reset restarts the stick and discards anything received before the reset.
func (n *Node) Reset(ctx context.Context) error {
	if err := n.Write(ResetSystem()); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(ResetSettleTime):
	}
	n.framer.Reset()
	return nil
}

// Open configures and opens a receive channel, or rx scan mode when cfg.Scan is set.
func (n *Node) Open(cfg ChannelConfig) error {
	for _, msg := range OpenSequence(cfg, n.key) {
		if err := n.Write(msg); err != nil {
			return fmt.Errorf("failed to open channel %d: %w", cfg.Number, err)
		}
	}
	return nil
}

// Close closes a channel.
func (n *Node) Close(channel uint8) error {
	return n.Write(CloseChannel(channel))
}

// Run reads frames from the stick and hands each one to handle, in the order
// they arrive, until ctx is cancelled or the transport fails.
// End of stream is not an error.
func (n *Node) Run(ctx context.Context, handle func([]byte)) error {
	return n.read(ctx, func(msg []byte) bool {
		handle(msg)
		return false
	})
}

// Request asks the stick for a message and waits for the reply with that ID.
// The returned frame is a copy owned by the caller.
func (n *Node) Request(ctx context.Context, channel, id uint8) ([]byte, error) {
	if err := n.Write(RequestMessage(channel, id)); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, ResponseTimeout)
	defer cancel()

	var reply []byte
	err := n.read(ctx, func(msg []byte) bool {
		if msg[IndexMsgType] != id {
			return false
		}
		reply = append([]byte(nil), msg...)
		return true
	})
	if reply != nil {
		return reply, nil
	}
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("request 0x%02x: %w", id, ErrTimeout)
	}
	return nil, err
}

// read feeds transport bytes to the framer until visit returns true.
func (n *Node) read(ctx context.Context, visit func([]byte) bool) error {
	done := false
	for !done {
		if err := ctx.Err(); err != nil {
			return err
		}
		count, err := n.rw.Read(n.buf)
		if count > 0 {
			n.framer.Feed(n.buf[:count], func(msg []byte) {
				if !done && visit(msg) {
					done = true
				}
			})
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read from stick: %w", err)
		}
	}
	return nil
}
