// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package querywire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultReceiveTimeout is the response wait applied by
// DefaultTransportConfig.
const DefaultReceiveTimeout = 3 * time.Second

// TransportConfig bundles the receive timeout and the wire strategy used
// by a Transport. It is a value; copy it freely.
type TransportConfig struct {
	// RcvTimeout bounds the wait for a response in SendQuery. Zero waits
	// forever.
	RcvTimeout time.Duration
	// Wire selects the encoding strategy for names and envelopes.
	Wire WireConfig
}

// DefaultTransportConfig returns the defaults: a 3 second receive timeout
// and the default wire strategy.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		RcvTimeout: DefaultReceiveTimeout,
		Wire:       DefaultWireConfig(),
	}
}

// ReceivedQuery is one inbound query: the name, decoded, and the query
// payload still in its encoded form. The receiver owns QueryBytes and
// decodes it once the name has determined the expected type.
type ReceivedQuery[N comparable] struct {
	Name       N
	QueryBytes []byte
}

// Transport drives the envelope protocol over one Channel. The calling
// side uses SendQuery; the responding side uses ReceiveQuery and Respond.
//
// The name type N is fixed per transport, so both sides agree statically
// on how operations are identified. A Transport is owned by one goroutine
// at a time.
type Transport[N comparable] struct {
	channel Channel

	// Config is read on every operation and may be replaced between
	// calls to reconfigure the transport.
	Config TransportConfig
}

// NewTransport wraps an already-established Channel.
func NewTransport[N comparable](ch Channel, cfg TransportConfig) *Transport[N] {
	return &Transport[N]{channel: ch, Config: cfg}
}

// SendQuery encodes name, wraps it with the caller's already-encoded
// query bytes into an envelope, sends it, and waits Config.RcvTimeout for
// the response. The response bytes are returned undecoded; interpreting
// them is the caller's concern.
//
// Errors are *RpcError values wrapping the underlying *TransportError, so
// a send failure stays distinguishable from a receive failure or timeout
// via errors.As.
func (t *Transport[N]) SendQuery(ctx context.Context, name N, queryBytes []byte) ([]byte, error) {
	pkgBytes, err := packEnvelope(t.Config.Wire, name, queryBytes)
	if err != nil {
		return nil, wrapTransport(err)
	}
	slog.Debug("transport sending", "bytes", len(pkgBytes))
	resp, err := t.channel.SendAndWaitForResponse(ctx, pkgBytes, t.Config.RcvTimeout)
	if err != nil {
		return nil, wrapTransport(err)
	}
	return resp, nil
}

// ReceiveQuery blocks, without a timeout, until the next envelope arrives
// and returns the decoded name alongside the still-encoded query bytes.
// A peer that closes the stream without sending surfaces as an error
// satisfying errors.Is(err, io.EOF).
func (t *Transport[N]) ReceiveQuery(ctx context.Context) (ReceivedQuery[N], error) {
	data, err := t.channel.Receive(ctx, 0)
	if err != nil {
		return ReceivedQuery[N]{}, wrapTransport(err)
	}
	slog.Debug("transport received", "bytes", len(data))
	if len(data) == 0 {
		return ReceivedQuery[N]{}, wrapTransport(deserializeErr(fmt.Errorf("empty envelope: %w", io.EOF)))
	}
	pkg, err := openEnvelope(t.Config.Wire, data)
	if err != nil {
		return ReceivedQuery[N]{}, wrapTransport(err)
	}
	var name N
	if err := t.Config.Wire.Deserialize(pkg.NameBytes, &name); err != nil {
		return ReceivedQuery[N]{}, wrapTransport(err)
	}
	return ReceivedQuery[N]{Name: name, QueryBytes: pkg.QueryBytes}, nil
}

// Respond sends already-encoded response bytes back over the channel
// without waiting for anything in return.
func (t *Transport[N]) Respond(ctx context.Context, b []byte) error {
	return wrapTransport(t.channel.Send(ctx, b))
}
