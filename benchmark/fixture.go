// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package benchmark holds the fixture methods used by the querywire
// benchmark suite.
package benchmark

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Query-farm/querywire/querywire"
)

// Parameter structs

type NoopParams struct{}

type AddParams struct {
	A float64 `json:"a" querywire:"a"`
	B float64 `json:"b" querywire:"b"`
}

type GreetParams struct {
	Name string `json:"name" querywire:"name"`
}

type RoundtripTypesParams struct {
	Color   string           `json:"color" querywire:"color"`
	Mapping map[string]int64 `json:"mapping" querywire:"mapping"`
	Tags    []int64          `json:"tags" querywire:"tags"`
}

type PayloadParams struct {
	Data []byte `json:"data" querywire:"data"`
}

// RegisterMethods registers the benchmark fixture methods on the server.
func RegisterMethods(server *querywire.Server[string]) {
	querywire.UnaryVoid(server, "noop", noop)
	querywire.Unary(server, "add", add)
	querywire.Unary(server, "greet", greet)
	querywire.Unary(server, "roundtrip_types", roundtripTypes)
	querywire.Unary(server, "payload_echo", payloadEcho)
}

// Handler implementations

func noop(_ context.Context, _ *querywire.CallContext, _ NoopParams) error {
	return nil
}

func add(_ context.Context, _ *querywire.CallContext, p AddParams) (float64, error) {
	return p.A + p.B, nil
}

func greet(_ context.Context, _ *querywire.CallContext, p GreetParams) (string, error) {
	return "Hello, " + p.Name + "!", nil
}

// roundtripTypes folds its collection parameters into a deterministic
// string, so differing map orders on the wire cannot change the answer.
func roundtripTypes(_ context.Context, _ *querywire.CallContext, p RoundtripTypesParams) (string, error) {
	keys := make([]string, 0, len(p.Mapping))
	for k := range p.Mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mappingParts []string
	for _, k := range keys {
		mappingParts = append(mappingParts, fmt.Sprintf("%s=%d", k, p.Mapping[k]))
	}

	sortedTags := make([]int64, len(p.Tags))
	copy(sortedTags, p.Tags)
	sort.Slice(sortedTags, func(i, j int) bool { return sortedTags[i] < sortedTags[j] })

	var tagParts []string
	for _, t := range sortedTags {
		tagParts = append(tagParts, fmt.Sprintf("%d", t))
	}

	return fmt.Sprintf("%s:{%s}:[%s]", p.Color, strings.Join(mappingParts, ","), strings.Join(tagParts, ",")), nil
}

func payloadEcho(_ context.Context, _ *querywire.CallContext, p PayloadParams) ([]byte, error) {
	return p.Data, nil
}
