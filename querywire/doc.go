// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package querywire implements a small RPC transport for typed
// query-response traffic over byte streams, with a pluggable wire
// encoding and a strict separation between message framing, envelope
// packing, and payload interpretation.
//
// # Layers
//
// From the bottom up:
//
//   - [Channel] moves whole logical messages over a byte stream.
//     [StreamChannel] is the net.Conn implementation; [CannedChannel] is
//     an in-memory double for tests.
//   - [Transport] packs a query name and an opaque query payload into an
//     envelope, sends it, and hands received envelopes back with the
//     name decoded and the payload still encoded.
//   - [Server] and [Client] add typed methods on top: handlers register
//     with [Unary] or [UnaryVoid], callers invoke with [Call] or
//     [CallVoid]. Responses carry error metadata and client-directed
//     log messages alongside the result payload.
//
// Each layer only understands its own slice: channels never look inside
// messages, transports never decode query payloads, and only the
// registered handler knows the query's Go type.
//
// # Wire encoding
//
// [WireConfig] selects the encoding strategy for everything the
// transport touches: names, envelopes, and the payloads both ends agree
// to exchange. Three strategies ship: [FormatGob] (the default and the
// interoperability baseline), [FormatJSON], and [FormatArrow], which
// carries each value as a single-row Arrow IPC stream. Serialize-side
// and deserialize-side options are independent; either direction can add
// zstd compression. Nothing on the wire announces the strategy, so both
// ends of a deployment must be configured identically.
//
// The Arrow strategy maps structs to one column per field tagged
// `querywire:"name"`; strings, integers, floats, bools, byte slices,
// slices, string-keyed maps, and nested tagged structs are supported,
// with pointer fields becoming nullable columns. Any other value is
// carried on a single "value" column.
//
// # Message framing
//
// Stream framing carries no length prefix. A receiver reads through a
// fixed 1024-byte buffer and considers the message complete when a read
// returns fewer bytes than the buffer holds, or when the stream closes.
// A stream that closes before delivering anything yields an empty
// message. Two consequences follow:
//
//   - A message whose final chunk lands on an exact multiple of 1024
//     bytes on an otherwise idle connection is not delimited until the
//     peer closes or sends again.
//   - When a receive times out, bytes already consumed are discarded and
//     the stream is no longer message-aligned; the channel should be
//     abandoned and a fresh connection established.
//
// # Errors
//
// Transport failures are [*TransportError] values classified by
// [TransportErrorKind]; layers above wrap them into [*RpcError] with
// type "TransportError". Both support errors.Is against the [ErrTransport]
// and [ErrRpc] sentinels, and the original cause stays reachable through
// errors.As. Remote handler failures come back to callers as *RpcError
// carrying the remote error type and message.
package querywire
