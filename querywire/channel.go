// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package querywire

import (
	"context"
	"errors"
	"time"
)

// Channel is a byte-level endpoint carrying whole logical messages. It
// knows nothing about envelopes or encodings; that is the transport's job.
//
// A timeout of zero blocks until a complete message arrives. A Channel is
// owned by one goroutine at a time; operations must not overlap.
type Channel interface {
	// Send transmits b as one logical message. It never reports success
	// after a partial delivery.
	Send(ctx context.Context, b []byte) error

	// SendAndWaitForResponse is Send followed by Receive with the given
	// timeout. A failure before the wait begins is reported as a send
	// failure, never as a receive failure.
	SendAndWaitForResponse(ctx context.Context, b []byte, timeout time.Duration) ([]byte, error)

	// Receive blocks until one complete logical message arrives or the
	// timeout elapses. A stream that closes before delivering any bytes
	// yields an empty message, not an error.
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// CannedChannel is an in-memory Channel for exercising transports and
// servers without a socket. Replies are synthesized from RespondName and
// RespondWith using Wire.
//
// Receive returns an envelope carrying RespondName and RespondWith, at
// most ReceiveTimes times; after that it fails with a receive error.
// SendAndWaitForResponse always answers with the encoded RespondWith and
// does not consume the receive budget. Sends succeed and discard their
// bytes.
type CannedChannel struct {
	RespondName  any
	RespondWith  string
	ReceiveTimes int
	Wire         WireConfig
}

func (c *CannedChannel) Send(ctx context.Context, b []byte) error {
	return nil
}

func (c *CannedChannel) SendAndWaitForResponse(ctx context.Context, b []byte, timeout time.Duration) ([]byte, error) {
	return c.Wire.Serialize(c.RespondWith)
}

func (c *CannedChannel) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if c.ReceiveTimes <= 0 {
		return nil, receiveErr(errors.New("run out of receive count"))
	}
	c.ReceiveTimes--
	queryBytes, err := c.Wire.Serialize(c.RespondWith)
	if err != nil {
		return nil, err
	}
	return packEnvelope(c.Wire, c.RespondName, queryBytes)
}
