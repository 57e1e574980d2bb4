// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"errors"
	"fmt"

	"github.com/Query-farm/querywire/querywire"
)

// --- Parameter structs for each method ---

type EchoStringParams struct {
	Value string `json:"value" querywire:"value"`
}
type EchoBytesParams struct {
	Data []byte `json:"data" querywire:"data"`
}
type EchoIntParams struct {
	Value int64 `json:"value" querywire:"value"`
}
type EchoFloatParams struct {
	Value float64 `json:"value" querywire:"value"`
}
type EchoBoolParams struct {
	Value bool `json:"value" querywire:"value"`
}
type VoidNoopParams struct{}
type VoidWithParamParams struct {
	Value int64 `json:"value" querywire:"value"`
}
type EchoEnumParams struct {
	Status Status `json:"status" querywire:"status"`
}
type EchoListParams struct {
	Values []string `json:"values" querywire:"values"`
}
type EchoDictParams struct {
	Mapping map[string]int64 `json:"mapping" querywire:"mapping"`
}
type EchoNestedListParams struct {
	Matrix [][]int64 `json:"matrix" querywire:"matrix"`
}
type EchoOptionalStringParams struct {
	Value *string `json:"value" querywire:"value"`
}
type EchoOptionalIntParams struct {
	Value *int64 `json:"value" querywire:"value"`
}
type EchoPointParams struct {
	Point Point `json:"point" querywire:"point"`
}
type EchoAllTypesParams struct {
	Data AllTypes `json:"data" querywire:"data"`
}
type EchoBoundingBoxParams struct {
	Box BoundingBox `json:"box" querywire:"box"`
}
type InspectPointParams struct {
	Point Point `json:"point" querywire:"point"`
}
type EchoInt32Params struct {
	Value int32 `json:"value" querywire:"value"`
}
type EchoFloat32Params struct {
	Value float32 `json:"value" querywire:"value"`
}
type AddFloatsParams struct {
	A float64 `json:"a" querywire:"a"`
	B float64 `json:"b" querywire:"b"`
}
type ConcatenateParams struct {
	Prefix    string `json:"prefix" querywire:"prefix"`
	Suffix    string `json:"suffix" querywire:"suffix"`
	Separator string `json:"separator" querywire:"separator"`
}
type WithDefaultsParams struct {
	Required    int64  `json:"required" querywire:"required"`
	OptionalStr string `json:"optional_str" querywire:"optional_str"`
	OptionalInt int64  `json:"optional_int" querywire:"optional_int"`
}
type RaiseErrorParams struct {
	Message string `json:"message" querywire:"message"`
}
type EchoWithLogParams struct {
	Value string `json:"value" querywire:"value"`
}

// RegisterMethods registers all conformance methods on the server.
func RegisterMethods(server *querywire.Server[Method]) {
	// Scalar echo methods
	querywire.Unary(server, "echo_string", echoString)
	querywire.Unary(server, "echo_bytes", echoBytes)
	querywire.Unary(server, "echo_int", echoInt)
	querywire.Unary(server, "echo_float", echoFloat)
	querywire.Unary(server, "echo_bool", echoBool)

	// Void returns
	querywire.UnaryVoid(server, "void_noop", voidNoop)
	querywire.UnaryVoid(server, "void_with_param", voidWithParam)

	// Complex type echo
	querywire.Unary(server, "echo_enum", echoEnum)
	querywire.Unary(server, "echo_list", echoList)
	querywire.Unary(server, "echo_dict", echoDict)
	querywire.Unary(server, "echo_nested_list", echoNestedList)

	// Optional/nullable
	querywire.Unary(server, "echo_optional_string", echoOptionalString)
	querywire.Unary(server, "echo_optional_int", echoOptionalInt)

	// Struct round-trip
	querywire.Unary(server, "echo_point", echoPoint)
	querywire.Unary(server, "echo_all_types", echoAllTypes)
	querywire.Unary(server, "echo_bounding_box", echoBoundingBox)

	// Struct as parameter
	querywire.Unary(server, "inspect_point", inspectPoint)

	// Narrow numeric types
	querywire.Unary(server, "echo_int32", echoInt32)
	querywire.Unary(server, "echo_float32", echoFloat32)

	// Multi-param & defaults
	querywire.Unary(server, "add_floats", addFloats)
	querywire.Unary(server, "concatenate", concatenate)
	querywire.Unary(server, "with_defaults", withDefaults)

	// Error propagation
	querywire.Unary(server, "raise_value_error", raiseValueError)
	querywire.Unary(server, "raise_runtime_error", raiseRuntimeError)
	querywire.Unary(server, "raise_type_error", raiseTypeError)
	querywire.Unary(server, "raise_internal_error", raiseInternalError)

	// Client-directed logging
	querywire.Unary(server, "echo_with_info_log", echoWithInfoLog)
	querywire.Unary(server, "echo_with_multi_logs", echoWithMultiLogs)
	querywire.Unary(server, "echo_with_log_extras", echoWithLogExtras)
}

// --- Scalar echo ---

func echoString(_ context.Context, ctx *querywire.CallContext, p EchoStringParams) (string, error) {
	return p.Value, nil
}
func echoBytes(_ context.Context, ctx *querywire.CallContext, p EchoBytesParams) ([]byte, error) {
	return p.Data, nil
}
func echoInt(_ context.Context, ctx *querywire.CallContext, p EchoIntParams) (int64, error) {
	return p.Value, nil
}
func echoFloat(_ context.Context, ctx *querywire.CallContext, p EchoFloatParams) (float64, error) {
	return p.Value, nil
}
func echoBool(_ context.Context, ctx *querywire.CallContext, p EchoBoolParams) (bool, error) {
	return p.Value, nil
}

// --- Void ---

func voidNoop(_ context.Context, ctx *querywire.CallContext, _ VoidNoopParams) error {
	return nil
}
func voidWithParam(_ context.Context, ctx *querywire.CallContext, _ VoidWithParamParams) error {
	return nil
}

// --- Complex type echo ---

func echoEnum(_ context.Context, ctx *querywire.CallContext, p EchoEnumParams) (Status, error) {
	return p.Status, nil
}
func echoList(_ context.Context, ctx *querywire.CallContext, p EchoListParams) ([]string, error) {
	return p.Values, nil
}
func echoDict(_ context.Context, ctx *querywire.CallContext, p EchoDictParams) (map[string]int64, error) {
	return p.Mapping, nil
}
func echoNestedList(_ context.Context, ctx *querywire.CallContext, p EchoNestedListParams) ([][]int64, error) {
	return p.Matrix, nil
}

// --- Optional/nullable ---

func echoOptionalString(_ context.Context, ctx *querywire.CallContext, p EchoOptionalStringParams) (*string, error) {
	return p.Value, nil
}
func echoOptionalInt(_ context.Context, ctx *querywire.CallContext, p EchoOptionalIntParams) (*int64, error) {
	return p.Value, nil
}

// --- Struct round-trip ---

func echoPoint(_ context.Context, ctx *querywire.CallContext, p EchoPointParams) (Point, error) {
	return p.Point, nil
}
func echoAllTypes(_ context.Context, ctx *querywire.CallContext, p EchoAllTypesParams) (AllTypes, error) {
	return p.Data, nil
}
func echoBoundingBox(_ context.Context, ctx *querywire.CallContext, p EchoBoundingBoxParams) (BoundingBox, error) {
	return p.Box, nil
}

// --- Struct as parameter ---

func inspectPoint(_ context.Context, ctx *querywire.CallContext, p InspectPointParams) (string, error) {
	return fmt.Sprintf("Point(%g, %g)", p.Point.X, p.Point.Y), nil
}

// --- Narrow numeric types ---

func echoInt32(_ context.Context, ctx *querywire.CallContext, p EchoInt32Params) (int32, error) {
	return p.Value, nil
}
func echoFloat32(_ context.Context, ctx *querywire.CallContext, p EchoFloat32Params) (float32, error) {
	return p.Value, nil
}

// --- Multi-param & defaults ---

func addFloats(_ context.Context, ctx *querywire.CallContext, p AddFloatsParams) (float64, error) {
	return p.A + p.B, nil
}

// Defaults are applied by the handler; an omitted field arrives as its
// zero value regardless of wire format.
func concatenate(_ context.Context, ctx *querywire.CallContext, p ConcatenateParams) (string, error) {
	if p.Separator == "" {
		p.Separator = "-"
	}
	return p.Prefix + p.Separator + p.Suffix, nil
}

func withDefaults(_ context.Context, ctx *querywire.CallContext, p WithDefaultsParams) (string, error) {
	if p.OptionalStr == "" {
		p.OptionalStr = "default"
	}
	if p.OptionalInt == 0 {
		p.OptionalInt = 42
	}
	return fmt.Sprintf("required=%d, optional_str=%s, optional_int=%d",
		p.Required, p.OptionalStr, p.OptionalInt), nil
}

// --- Error propagation ---

func raiseValueError(_ context.Context, ctx *querywire.CallContext, p RaiseErrorParams) (string, error) {
	return "", &querywire.RpcError{Type: "ValueError", Message: p.Message}
}
func raiseRuntimeError(_ context.Context, ctx *querywire.CallContext, p RaiseErrorParams) (string, error) {
	return "", &querywire.RpcError{Type: "RuntimeError", Message: p.Message}
}
func raiseTypeError(_ context.Context, ctx *querywire.CallContext, p RaiseErrorParams) (string, error) {
	return "", &querywire.RpcError{Type: "TypeError", Message: p.Message}
}
func raiseInternalError(_ context.Context, ctx *querywire.CallContext, p RaiseErrorParams) (string, error) {
	return "", errors.New(p.Message)
}

// --- Client-directed logging ---

func echoWithInfoLog(_ context.Context, ctx *querywire.CallContext, p EchoWithLogParams) (string, error) {
	ctx.ClientLog(querywire.LogInfo, fmt.Sprintf("info: %s", p.Value))
	return p.Value, nil
}
func echoWithMultiLogs(_ context.Context, ctx *querywire.CallContext, p EchoWithLogParams) (string, error) {
	ctx.ClientLog(querywire.LogDebug, fmt.Sprintf("debug: %s", p.Value))
	ctx.ClientLog(querywire.LogInfo, fmt.Sprintf("info: %s", p.Value))
	ctx.ClientLog(querywire.LogWarn, fmt.Sprintf("warn: %s", p.Value))
	return p.Value, nil
}
func echoWithLogExtras(_ context.Context, ctx *querywire.CallContext, p EchoWithLogParams) (string, error) {
	ctx.ClientLog(querywire.LogInfo, "echo_with_extras",
		querywire.KV{Key: "source", Value: "conformance"},
		querywire.KV{Key: "detail", Value: p.Value},
	)
	return p.Value, nil
}
