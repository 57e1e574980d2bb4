// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package querywire

import (
	"context"
	"log/slog"
	"reflect"
)

// Client issues typed calls over one Transport. Like the transport it
// wraps, a client is owned by one goroutine at a time.
type Client[N comparable] struct {
	transport *Transport[N]

	// OnLog receives client-directed log messages carried in responses.
	// When nil, messages are forwarded to slog at the equivalent level.
	OnLog func(LogMessage)
}

// NewClient wraps an already-established channel.
func NewClient[N comparable](ch Channel, cfg TransportConfig) *Client[N] {
	return &Client[N]{transport: NewTransport[N](ch, cfg)}
}

// Transport returns the underlying transport, e.g. to adjust its Config
// between calls.
func (c *Client[N]) Transport() *Transport[N] {
	return c.transport
}

// Call issues a typed query and decodes a typed result. Errors raised on
// the remote side come back as *RpcError with the remote type and
// message; transport failures are *RpcError values wrapping the
// underlying *TransportError.
//
// The result type cannot be inferred, so calls name it explicitly:
//
//	sum, err := querywire.Call[AddParams, float64](ctx, client, MethodAdd, p)
func Call[Q any, R any, N comparable](ctx context.Context, c *Client[N], name N, query Q) (R, error) {
	var zero R
	wire := c.transport.Config.Wire

	// Field-less query structs travel as an empty payload; see the
	// matching convention in the handler wrappers.
	var queryBytes []byte
	if !isFieldless(query) {
		var err error
		queryBytes, err = wire.Serialize(query)
		if err != nil {
			return zero, wrapTransport(err)
		}
	}
	respBytes, err := c.transport.SendQuery(ctx, name, queryBytes)
	if err != nil {
		return zero, err
	}

	var resp wireResponse
	if err := wire.Deserialize(respBytes, &resp); err != nil {
		return zero, wrapTransport(err)
	}
	c.surfaceLogs(resp)

	if resp.ErrType != "" {
		return zero, &RpcError{Type: resp.ErrType, Message: resp.ErrMsg}
	}
	if len(resp.Payload) == 0 {
		return zero, nil
	}
	var result R
	if err := wire.Deserialize(resp.Payload, &result); err != nil {
		return zero, wrapTransport(err)
	}
	return result, nil
}

// CallVoid issues a typed query that expects no result payload.
func CallVoid[Q any, N comparable](ctx context.Context, c *Client[N], name N, query Q) error {
	_, err := Call[Q, struct{}, N](ctx, c, name, query)
	return err
}

// isFieldless reports whether v is a struct with no fields, like
// struct{}. Such values carry no information, so no payload is sent.
func isFieldless(v any) bool {
	t := reflect.TypeOf(v)
	return t != nil && t.Kind() == reflect.Struct && t.NumField() == 0
}

func (c *Client[N]) surfaceLogs(resp wireResponse) {
	for _, msg := range resp.Logs {
		if c.OnLog != nil {
			c.OnLog(msg)
			continue
		}
		args := make([]any, 0, 2*len(msg.Extras)+2)
		args = append(args, "call_id", resp.CallID)
		for _, kv := range msg.Extras {
			args = append(args, kv.Key, kv.Value)
		}
		slog.Log(context.Background(), slogLevel(msg.Level), msg.Message, args...)
	}
}
