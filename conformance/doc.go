// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package conformance provides internal test fixtures for the querywire
// protocol conformance suite. It registers a comprehensive set of unary
// RPC methods that exercise every feature of the transport: scalar
// types, collections, nullable fields, struct round-trips, handler-side
// defaults, enums, error propagation, and client-directed logging.
//
// The only entry point intended for external use is [RegisterMethods],
// which registers all conformance methods on a [querywire.Server]. The
// domain types [Status], [Point], [BoundingBox], and [AllTypes] are
// exported because they serve as examples of wire-encodable records
// across every [querywire.WireFormat].
package conformance
