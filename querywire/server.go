// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package querywire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// wireResponse is the response counterpart of the request envelope. The
// result payload is encoded independently and wrapped together with error
// and log metadata, so the caller can decode the frame without knowing
// the result type.
type wireResponse struct {
	CallID  string       `json:"call_id" querywire:"call_id"`
	Payload []byte       `json:"payload" querywire:"payload"`
	ErrType string       `json:"err_type" querywire:"err_type"`
	ErrMsg  string       `json:"err_msg" querywire:"err_msg"`
	Logs    []LogMessage `json:"logs,omitempty" querywire:"logs"`
}

// handlerFunc decodes a query, runs the method, and encodes the result.
type handlerFunc func(ctx context.Context, call *CallContext, wire WireConfig, queryBytes []byte) ([]byte, error)

type methodInfo struct {
	display string
	handler handlerFunc
}

// Server dispatches received queries to registered handlers. Methods are
// registered with the free functions [Unary] and [UnaryVoid]; the name
// type N is shared with the clients it serves.
//
// Registration is not safe concurrently with serving; register everything
// first.
type Server[N comparable] struct {
	methods      map[N]*methodInfo
	config       TransportConfig
	serverID     string
	serviceName  string
	logLevel     LogLevel
	debugErrors  bool
	dispatchHook DispatchHook
}

// NewServer creates a server speaking the given transport configuration.
// The N type argument fixes how methods are named on the wire.
func NewServer[N comparable](cfg TransportConfig) *Server[N] {
	return &Server[N]{
		methods:  make(map[N]*methodInfo),
		config:   cfg,
		logLevel: LogTrace,
	}
}

// SetServerID sets an identifier for this serving process, surfaced to
// handlers and hooks.
func (s *Server[N]) SetServerID(id string) {
	s.serverID = id
}

// SetServiceName sets a human-readable service name for instrumentation.
func (s *Server[N]) SetServiceName(name string) {
	s.serviceName = name
}

// ServiceName returns the configured service name.
func (s *Server[N]) ServiceName() string {
	return s.serviceName
}

// SetWireConfig replaces the wire strategy for channels served after the
// call. Channels already being served keep the strategy they started with.
func (s *Server[N]) SetWireConfig(wire WireConfig) {
	s.config.Wire = wire
}

// SetClientLogLevel sets the minimum severity of client-directed log
// messages recorded during handler execution. The default is LogTrace,
// which records everything.
func (s *Server[N]) SetClientLogLevel(level LogLevel) {
	s.logLevel = level
}

// SetDebugErrors controls whether plain handler errors expose their full
// text to clients. When false, clients see "internal error" and the
// detail stays in the server log. *RpcError values are always sent as-is.
func (s *Server[N]) SetDebugErrors(debug bool) {
	s.debugErrors = debug
}

// SetDispatchHook installs a hook observing every dispatch.
func (s *Server[N]) SetDispatchHook(hook DispatchHook) {
	s.dispatchHook = hook
}

func register[N comparable](s *Server[N], name N, h handlerFunc) {
	if _, exists := s.methods[name]; exists {
		panic(fmt.Sprintf("querywire: method %v already registered", name))
	}
	s.methods[name] = &methodInfo{display: fmt.Sprint(name), handler: h}
}

// Unary registers a request-response method. The query payload is decoded
// into Q, the handler's R result is encoded back. Registering the same
// name twice panics.
func Unary[Q any, R any, N comparable](s *Server[N], name N, handler func(context.Context, *CallContext, Q) (R, error)) {
	register(s, name, func(ctx context.Context, call *CallContext, wire WireConfig, queryBytes []byte) ([]byte, error) {
		// An empty payload means zero-value params; see Call.
		var q Q
		if len(queryBytes) > 0 {
			if err := wire.Deserialize(queryBytes, &q); err != nil {
				return nil, &RpcError{
					Type:    ErrTypeBadQuery,
					Message: fmt.Sprintf("query deserialization: %v", err),
					cause:   err,
				}
			}
		}
		result, err := handler(ctx, call, q)
		if err != nil {
			return nil, err
		}
		if isFieldless(result) {
			return nil, nil
		}
		payload, err := wire.Serialize(result)
		if err != nil {
			return nil, &RpcError{
				Type:    ErrTypeSerialization,
				Message: fmt.Sprintf("result serialization: %v", err),
				cause:   err,
			}
		}
		return payload, nil
	})
}

// UnaryVoid registers a method with no result payload.
func UnaryVoid[Q any, N comparable](s *Server[N], name N, handler func(context.Context, *CallContext, Q) error) {
	register(s, name, func(ctx context.Context, call *CallContext, wire WireConfig, queryBytes []byte) ([]byte, error) {
		var q Q
		if len(queryBytes) > 0 {
			if err := wire.Deserialize(queryBytes, &q); err != nil {
				return nil, &RpcError{
					Type:    ErrTypeBadQuery,
					Message: fmt.Sprintf("query deserialization: %v", err),
					cause:   err,
				}
			}
		}
		if err := handler(ctx, call, q); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// ServeChannel answers queries on ch until the context is canceled, the
// peer closes the stream, or the channel fails.
func (s *Server[N]) ServeChannel(ctx context.Context, ch Channel) error {
	transport := NewTransport[N](ch, s.config)
	for {
		err := s.serveOne(ctx, transport)
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		return err
	}
}

// serveOne handles one complete query-response cycle.
func (s *Server[N]) serveOne(ctx context.Context, transport *Transport[N]) error {
	recv, err := transport.ReceiveQuery(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		var te *TransportError
		if errors.As(err, &te) && te.Kind == DeserializeError {
			// A complete message arrived but did not decode. Report it
			// and keep serving; the channel itself is still aligned.
			return s.respond(ctx, transport, wireResponse{
				CallID:  uuid.NewString(),
				ErrType: ErrTypeTransport,
				ErrMsg:  err.Error(),
			})
		}
		return err
	}

	callID := uuid.NewString()

	info, ok := s.methods[recv.Name]
	if !ok {
		display := fmt.Sprint(recv.Name)
		slog.Debug("unknown method requested", "method", display)
		return s.respond(ctx, transport, wireResponse{
			CallID:  callID,
			ErrType: ErrTypeUnknownMethod,
			ErrMsg:  fmt.Sprintf("unknown method %q, available methods: %v", display, s.availableMethods()),
		})
	}

	dispatchInfo := DispatchInfo{
		Method:   info.display,
		ServerID: s.serverID,
		CallID:   callID,
	}
	stats := &CallStatistics{}
	stats.RecordInput(int64(len(recv.QueryBytes)))

	var hookToken HookToken
	hookActive := false
	if s.dispatchHook != nil {
		func() {
			defer func() {
				if rv := recover(); rv != nil {
					slog.Error("dispatch hook start panic", "err", rv)
				}
			}()
			hookCtx, token := s.dispatchHook.OnDispatchStart(ctx, dispatchInfo)
			if hookCtx != nil {
				ctx = hookCtx
			}
			hookToken = token
			hookActive = true
		}()
	}

	call := &CallContext{
		Ctx:      ctx,
		CallID:   callID,
		ServerID: s.serverID,
		Method:   info.display,
		LogLevel: s.logLevel,
	}

	payload, handlerErr := info.handler(ctx, call, transport.Config.Wire, recv.QueryBytes)

	resp := wireResponse{CallID: callID, Payload: payload, Logs: call.drainLogs()}
	if handlerErr != nil {
		resp.Payload = nil
		var rpcErr *RpcError
		if errors.As(handlerErr, &rpcErr) {
			resp.ErrType = rpcErr.Type
			resp.ErrMsg = rpcErr.Message
		} else {
			resp.ErrType = ErrTypeHandler
			if s.debugErrors {
				resp.ErrMsg = handlerErr.Error()
			} else {
				resp.ErrMsg = "internal error"
				slog.Error("handler error", "method", info.display, "call_id", callID, "err", handlerErr)
			}
		}
	}

	respErr := s.respond(ctx, transport, resp)
	if respErr == nil {
		stats.RecordOutput(int64(len(resp.Payload)))
	}

	if hookActive {
		func() {
			defer func() {
				if rv := recover(); rv != nil {
					slog.Error("dispatch hook end panic", "err", rv)
				}
			}()
			s.dispatchHook.OnDispatchEnd(ctx, hookToken, dispatchInfo, stats, handlerErr)
		}()
	}

	return respErr
}

func (s *Server[N]) respond(ctx context.Context, transport *Transport[N], resp wireResponse) error {
	respBytes, err := transport.Config.Wire.Serialize(resp)
	if err != nil {
		return wrapTransport(err)
	}
	return transport.Respond(ctx, respBytes)
}

// ServeConn answers queries on a single connection and closes it when the
// peer disconnects or the context is canceled.
func (s *Server[N]) ServeConn(ctx context.Context, conn net.Conn) error {
	ch := NewStreamChannel(conn)
	defer ch.Close()
	return s.ServeChannel(ctx, ch)
}

// ServeListener accepts connections until the context is canceled and
// serves each on its own goroutine with its own transport. Per-connection
// failures are logged, not returned.
func (s *Server[N]) ServeListener(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				acceptErr = err
			}
			break
		}
		group.Go(func() error {
			if err := s.ServeConn(ctx, conn); err != nil && !isChannelClosed(err) {
				slog.Error("serve connection error", "err", err)
			}
			return nil
		})
	}
	cancel()
	_ = group.Wait()
	return acceptErr
}

// isChannelClosed reports whether an error indicates the peer went away
// normally rather than a protocol failure.
func isChannelClosed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "EOF")
}

func (s *Server[N]) availableMethods() []string {
	names := make([]string, 0, len(s.methods))
	for _, info := range s.methods {
		names = append(names, info.display)
	}
	sort.Strings(names)
	return names
}
