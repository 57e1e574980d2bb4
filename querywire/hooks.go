// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package querywire

import "context"

// HookToken is an opaque value returned by OnDispatchStart and handed
// back to OnDispatchEnd. It is meaningful only to the DispatchHook that
// created it.
type HookToken any

// DispatchInfo is the call metadata passed to dispatch hooks.
type DispatchInfo struct {
	// Method is the display form of the name being invoked.
	Method string
	// ServerID identifies the serving process, when set.
	ServerID string
	// CallID is the server-minted identifier for this call.
	CallID string
}

// DispatchHook observes the dispatch of every call on a server. A server
// with a listener dispatches concurrently, so implementations must be
// safe for concurrent use.
//
// A panic in either callback is recovered and logged; hooks cannot take
// down the serve loop.
type DispatchHook interface {
	// OnDispatchStart runs after the query is received and the method is
	// resolved, before the handler. It may derive a new context for the
	// handler; returning a nil context keeps the current one.
	OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken)

	// OnDispatchEnd runs after the response has been sent (or failed to
	// send). err is the handler's error, nil on success.
	OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error)
}

// CallStatistics accumulates per-call I/O counters. Byte counts measure
// encoded payloads, not envelope overhead.
type CallStatistics struct {
	InputMessages  int64
	OutputMessages int64
	InputBytes     int64
	OutputBytes    int64
}

// RecordInput records one received payload of the given encoded size.
func (s *CallStatistics) RecordInput(encodedBytes int64) {
	s.InputMessages++
	s.InputBytes += encodedBytes
}

// RecordOutput records one sent payload of the given encoded size.
func (s *CallStatistics) RecordOutput(encodedBytes int64) {
	s.OutputMessages++
	s.OutputBytes += encodedBytes
}
