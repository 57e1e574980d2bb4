// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package querywire

import (
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// receiveBufSize is the fixed intermediate read buffer size. A logical
// message is complete the moment a read returns fewer bytes than this, so
// a message whose final chunk fills the buffer exactly is only delimited
// by the peer closing or the next message arriving. See the package
// documentation for the framing contract.
const receiveBufSize = 1024

// StreamChannel is the Channel implementation over a connected duplex
// byte stream. Message boundaries are inferred from short reads; there is
// no length prefix on the wire.
//
// After a receive timeout or a context cancellation, bytes already
// consumed from the stream are discarded and the stream position is no
// longer message-aligned. The channel is not safely reusable after either
// event; establish a fresh connection instead.
type StreamChannel struct {
	conn net.Conn
}

// NewStreamChannel wraps an already-connected stream.
func NewStreamChannel(conn net.Conn) *StreamChannel {
	return &StreamChannel{conn: conn}
}

// Dial connects to addr on the given network and wraps the connection.
// Failures are reported as ConnectError.
func Dial(ctx context.Context, network, addr string) (*StreamChannel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, connectErr(err)
	}
	return NewStreamChannel(conn), nil
}

// Close closes the underlying stream.
func (c *StreamChannel) Close() error {
	return c.conn.Close()
}

func (c *StreamChannel) Send(ctx context.Context, b []byte) error {
	_ = c.conn.SetWriteDeadline(time.Time{})
	stop := c.guardCancel(ctx, c.conn.SetWriteDeadline)
	defer stop()

	if _, err := c.conn.Write(b); err != nil {
		if ctx.Err() != nil {
			return sendErr(ctx.Err())
		}
		return sendErr(err)
	}
	return nil
}

func (c *StreamChannel) SendAndWaitForResponse(ctx context.Context, b []byte, timeout time.Duration) ([]byte, error) {
	if err := c.Send(ctx, b); err != nil {
		return nil, err
	}
	return c.Receive(ctx, timeout)
}

func (c *StreamChannel) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	// Clear any stale deadline before the guard starts; the guard re-pokes
	// if ctx is already canceled.
	_ = c.conn.SetReadDeadline(time.Time{})
	stop := c.guardCancel(ctx, c.conn.SetReadDeadline)
	defer stop()

	var msg []byte
	buf := make([]byte, receiveBufSize)
	for {
		// Each read races the timeout individually, so a slow peer can
		// hold the line open indefinitely as long as every chunk lands
		// within the window.
		if timeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			msg = append(msg, buf[:n]...)
			if n < receiveBufSize {
				return msg, nil
			}
			continue
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			// Closed stream: whatever arrived so far is the message,
			// including nothing at all.
			return msg, nil
		}
		if ctx.Err() != nil {
			return nil, receiveErr(ctx.Err())
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() && timeout > 0 {
			return nil, timeoutErr(timeout)
		}
		return nil, receiveErr(err)
	}
}

// guardCancel pokes the connection's deadline when ctx is canceled so a
// blocked read or write wakes up. The returned stop function must be
// called once the guarded operation completes.
func (c *StreamChannel) guardCancel(ctx context.Context, setDeadline func(time.Time) error) (stop func()) {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = setDeadline(time.Now())
		case <-done:
		}
	}()
	return func() { close(done) }
}
