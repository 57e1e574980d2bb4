// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package querywire

import (
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCannedReceiveQuery(t *testing.T) {
	ch := &CannedChannel{
		RespondName:  nameHello,
		RespondWith:  "Foo",
		ReceiveTimes: 1,
		Wire:         DefaultWireConfig(),
	}
	tr := NewTransport[rpcName](ch, DefaultTransportConfig())

	recv, err := tr.ReceiveQuery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nameHello, recv.Name)

	var query string
	require.NoError(t, tr.Config.Wire.Deserialize(recv.QueryBytes, &query))
	assert.Equal(t, "Foo", query)

	// The receive budget is spent.
	_, err = tr.ReceiveQuery(context.Background())
	require.Error(t, err)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ReceiveError, te.Kind)
	assert.Contains(t, te.Cause, "run out of receive count")
}

func TestCannedSendQuery(t *testing.T) {
	ch := &CannedChannel{
		RespondWith:  "Foo",
		ReceiveTimes: 1,
		Wire:         DefaultWireConfig(),
	}
	tr := NewTransport[rpcName](ch, DefaultTransportConfig())

	queryBytes, err := tr.Config.Wire.Serialize(42)
	require.NoError(t, err)
	resp, err := tr.SendQuery(context.Background(), nameHello, queryBytes)
	require.NoError(t, err)

	var decoded string
	require.NoError(t, tr.Config.Wire.Deserialize(resp, &decoded))
	assert.Equal(t, "Foo", decoded)
}

func transportPipePair(t *testing.T, cfg TransportConfig) (*Transport[rpcName], *Transport[rpcName]) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return NewTransport[rpcName](NewStreamChannel(a), cfg), NewTransport[rpcName](NewStreamChannel(b), cfg)
}

func TestSendQueryReceiveQueryRespond(t *testing.T) {
	for _, cfg := range []TransportConfig{
		DefaultTransportConfig(),
		{RcvTimeout: time.Second, Wire: JSONWire(SerOptions{}, DeOptions{})},
		{RcvTimeout: time.Second, Wire: ArrowWire(SerOptions{}, DeOptions{})},
	} {
		t.Run(cfg.Wire.Format.String(), func(t *testing.T) {
			caller, responder := transportPipePair(t, cfg)

			done := make(chan error, 1)
			go func() {
				recv, err := responder.ReceiveQuery(context.Background())
				if err != nil {
					done <- err
					return
				}
				if recv.Name != nameHello {
					done <- fmt.Errorf("unexpected name %q", recv.Name)
					return
				}
				var q string
				if err := responder.Config.Wire.Deserialize(recv.QueryBytes, &q); err != nil {
					done <- err
					return
				}
				respBytes, err := responder.Config.Wire.Serialize("answer:" + q)
				if err != nil {
					done <- err
					return
				}
				done <- responder.Respond(context.Background(), respBytes)
			}()

			queryBytes, err := caller.Config.Wire.Serialize("Foo")
			require.NoError(t, err)
			resp, err := caller.SendQuery(context.Background(), nameHello, queryBytes)
			require.NoError(t, err)
			require.NoError(t, <-done)

			var got string
			require.NoError(t, caller.Config.Wire.Deserialize(resp, &got))
			assert.Equal(t, "answer:Foo", got)
		})
	}
}

func TestSendQueryOrdering(t *testing.T) {
	caller, responder := transportPipePair(t, DefaultTransportConfig())

	// Sequential SendQuery calls hit the wire in invocation order.
	var got []string
	done := make(chan error, 1)
	go func() {
		for range 2 {
			recv, err := responder.ReceiveQuery(context.Background())
			if err != nil {
				done <- err
				return
			}
			var q string
			if err := responder.Config.Wire.Deserialize(recv.QueryBytes, &q); err != nil {
				done <- err
				return
			}
			got = append(got, q)
			ack, err := responder.Config.Wire.Serialize("ok:" + q)
			if err != nil {
				done <- err
				return
			}
			if err := responder.Respond(context.Background(), ack); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for _, q := range []string{"first", "second"} {
		queryBytes, err := caller.Config.Wire.Serialize(q)
		require.NoError(t, err)
		resp, err := caller.SendQuery(context.Background(), nameHello, queryBytes)
		require.NoError(t, err)

		var ack string
		require.NoError(t, caller.Config.Wire.Deserialize(resp, &ack))
		assert.Equal(t, "ok:"+q, ack)
	}
	require.NoError(t, <-done)
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestSendQueryTimesOutWithoutResponse(t *testing.T) {
	cfg := DefaultTransportConfig()
	cfg.RcvTimeout = 80 * time.Millisecond
	caller, responder := transportPipePair(t, cfg)

	// Drain the request but never answer it.
	go func() {
		_, _ = responder.ReceiveQuery(context.Background())
	}()

	queryBytes, err := caller.Config.Wire.Serialize("Foo")
	require.NoError(t, err)
	_, err = caller.SendQuery(context.Background(), nameHello, queryBytes)
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ReceiveTimeout, te.Kind)
	assert.Equal(t, 80*time.Millisecond, te.Timeout)

	var rpcErr *RpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrTypeTransport, rpcErr.Type)
}

func TestTransportConfigSwappable(t *testing.T) {
	caller, responder := transportPipePair(t, DefaultTransportConfig())

	// Both ends move to JSON between calls; the next exchange uses it.
	caller.Config.Wire = JSONWire(SerOptions{}, DeOptions{})
	responder.Config.Wire = JSONWire(SerOptions{}, DeOptions{})
	caller.Config.RcvTimeout = time.Second

	done := make(chan error, 1)
	go func() {
		recv, err := responder.ReceiveQuery(context.Background())
		if err != nil {
			done <- err
			return
		}
		done <- responder.Respond(context.Background(), recv.QueryBytes)
	}()

	queryBytes, err := caller.Config.Wire.Serialize("ping")
	require.NoError(t, err)
	resp, err := caller.SendQuery(context.Background(), nameHello, queryBytes)
	require.NoError(t, err)
	require.NoError(t, <-done)

	var got string
	require.NoError(t, caller.Config.Wire.Deserialize(resp, &got))
	assert.Equal(t, "ping", got)
}

func TestRespondSendFailure(t *testing.T) {
	a, b := net.Pipe()
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, b.Close())

	tr := NewTransport[rpcName](NewStreamChannel(a), DefaultTransportConfig())
	err := tr.Respond(context.Background(), []byte("late"))
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, SendError, te.Kind)
}

func TestReceiveQueryClosedPeer(t *testing.T) {
	a, b := net.Pipe()
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, b.Close())

	tr := NewTransport[rpcName](NewStreamChannel(a), DefaultTransportConfig())
	_, err := tr.ReceiveQuery(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, io.EOF)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, DeserializeError, te.Kind)
}

func TestReceiveQueryGarbage(t *testing.T) {
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	go func() {
		_, _ = b.Write([]byte("not an envelope"))
	}()

	tr := NewTransport[rpcName](NewStreamChannel(a), DefaultTransportConfig())
	_, err := tr.ReceiveQuery(context.Background())
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, DeserializeError, te.Kind)
}
