// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package querywire

import "context"

// CallContext carries request-scoped information into method handlers and
// collects client-directed log messages for the response.
type CallContext struct {
	// Ctx is the request-scoped context.
	Ctx context.Context
	// CallID is the server-minted identifier for this call. It is echoed
	// in the response metadata.
	CallID string
	// ServerID identifies the serving process, when set via
	// [Server.SetServerID].
	ServerID string
	// Method is the display form of the name being invoked.
	Method string
	// LogLevel is the minimum severity recorded by ClientLog.
	LogLevel LogLevel

	logs []LogMessage
}

// ClientLog records a message that will be delivered to the client inside
// the response. Messages below LogLevel are discarded.
func (ctx *CallContext) ClientLog(level LogLevel, msg string, extras ...KV) {
	if logLevelPriority(level) > logLevelPriority(ctx.LogLevel) {
		return
	}
	m := LogMessage{Level: level, Message: msg}
	if len(extras) > 0 {
		m.Extras = append(m.Extras, extras...)
	}
	ctx.logs = append(ctx.logs, m)
}

// drainLogs returns and clears the accumulated log messages.
func (ctx *CallContext) drainLogs() []LogMessage {
	logs := ctx.logs
	ctx.logs = nil
	return logs
}
