// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package querywire

import "log/slog"

// LogLevel is the severity of a client-directed log message.
type LogLevel string

const (
	LogException LogLevel = "EXCEPTION"
	LogError     LogLevel = "ERROR"
	LogWarn      LogLevel = "WARN"
	LogInfo      LogLevel = "INFO"
	LogDebug     LogLevel = "DEBUG"
	LogTrace     LogLevel = "TRACE"
)

// logLevelPriority returns a numeric priority for a level; lower is more
// severe. Unknown levels sort least severe.
func logLevelPriority(level LogLevel) int {
	switch level {
	case LogException:
		return 0
	case LogError:
		return 1
	case LogWarn:
		return 2
	case LogInfo:
		return 3
	case LogDebug:
		return 4
	case LogTrace:
		return 5
	default:
		return 6
	}
}

// KV is one structured key-value pair attached to a log message.
type KV struct {
	Key   string `json:"key" querywire:"key"`
	Value string `json:"value" querywire:"value"`
}

// LogMessage is one client-directed log record carried back to the caller
// inside a response envelope.
type LogMessage struct {
	Level   LogLevel `json:"level" querywire:"level"`
	Message string   `json:"message" querywire:"message"`
	Extras  []KV     `json:"extras,omitempty" querywire:"extras"`
}

// slogLevel maps a wire log level to its slog equivalent for local
// surfacing on the client side.
func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LogException, LogError:
		return slog.LevelError
	case LogWarn:
		return slog.LevelWarn
	case LogInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
