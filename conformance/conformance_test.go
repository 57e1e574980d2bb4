// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/querywire/querywire"
)

func wireConfigs() map[string]querywire.WireConfig {
	return map[string]querywire.WireConfig{
		"gob":   querywire.DefaultWireConfig(),
		"json":  querywire.JSONWire(querywire.SerOptions{}, querywire.DeOptions{}),
		"arrow": querywire.ArrowWire(querywire.SerOptions{}, querywire.DeOptions{}),
	}
}

func startConformanceServer(t *testing.T, wire querywire.WireConfig) *querywire.Client[Method] {
	t.Helper()
	cfg := querywire.TransportConfig{RcvTimeout: 3 * time.Second, Wire: wire}
	server := querywire.NewServer[Method](cfg)
	server.SetServerID("conformance-test")
	server.SetServiceName("querywire-conformance")
	server.SetDebugErrors(true)
	RegisterMethods(server)

	a, b := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.ServeChannel(ctx, querywire.NewStreamChannel(a))
	}()
	t.Cleanup(func() {
		cancel()
		_ = a.Close()
		_ = b.Close()
		<-done
	})
	return querywire.NewClient[Method](querywire.NewStreamChannel(b), cfg)
}

func TestScalarEchoes(t *testing.T) {
	for name, wire := range wireConfigs() {
		t.Run(name, func(t *testing.T) {
			client := startConformanceServer(t, wire)
			ctx := context.Background()

			s, err := querywire.Call[EchoStringParams, string](ctx, client, "echo_string", EchoStringParams{Value: "hello"})
			require.NoError(t, err)
			assert.Equal(t, "hello", s)

			i, err := querywire.Call[EchoIntParams, int64](ctx, client, "echo_int", EchoIntParams{Value: -17})
			require.NoError(t, err)
			assert.Equal(t, int64(-17), i)

			f, err := querywire.Call[EchoFloatParams, float64](ctx, client, "echo_float", EchoFloatParams{Value: 3.25})
			require.NoError(t, err)
			assert.Equal(t, 3.25, f)

			bl, err := querywire.Call[EchoBoolParams, bool](ctx, client, "echo_bool", EchoBoolParams{Value: true})
			require.NoError(t, err)
			assert.True(t, bl)

			bs, err := querywire.Call[EchoBytesParams, []byte](ctx, client, "echo_bytes", EchoBytesParams{Data: []byte{0xca, 0xfe}})
			require.NoError(t, err)
			assert.Equal(t, []byte{0xca, 0xfe}, bs)
		})
	}
}

func TestVoidMethods(t *testing.T) {
	client := startConformanceServer(t, querywire.DefaultWireConfig())
	ctx := context.Background()

	require.NoError(t, querywire.CallVoid(ctx, client, "void_noop", VoidNoopParams{}))
	require.NoError(t, querywire.CallVoid(ctx, client, "void_with_param", VoidWithParamParams{Value: 9}))
}

func TestComplexEchoes(t *testing.T) {
	for name, wire := range wireConfigs() {
		t.Run(name, func(t *testing.T) {
			client := startConformanceServer(t, wire)
			ctx := context.Background()

			st, err := querywire.Call[EchoEnumParams, Status](ctx, client, "echo_enum", EchoEnumParams{Status: StatusActive})
			require.NoError(t, err)
			assert.Equal(t, StatusActive, st)

			ls, err := querywire.Call[EchoListParams, []string](ctx, client, "echo_list", EchoListParams{Values: []string{"x", "y", "z"}})
			require.NoError(t, err)
			assert.Equal(t, []string{"x", "y", "z"}, ls)

			d, err := querywire.Call[EchoDictParams, map[string]int64](ctx, client, "echo_dict", EchoDictParams{Mapping: map[string]int64{"a": 1, "b": 2}})
			require.NoError(t, err)
			assert.Equal(t, map[string]int64{"a": 1, "b": 2}, d)

			m, err := querywire.Call[EchoNestedListParams, [][]int64](ctx, client, "echo_nested_list", EchoNestedListParams{Matrix: [][]int64{{1, 2}, {3}}})
			require.NoError(t, err)
			assert.Equal(t, [][]int64{{1, 2}, {3}}, m)
		})
	}
}

func TestOptionalEchoes(t *testing.T) {
	for name, wire := range wireConfigs() {
		t.Run(name, func(t *testing.T) {
			client := startConformanceServer(t, wire)
			ctx := context.Background()

			val := "present"
			got, err := querywire.Call[EchoOptionalStringParams, *string](ctx, client, "echo_optional_string", EchoOptionalStringParams{Value: &val})
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "present", *got)

			n := int64(7)
			gi, err := querywire.Call[EchoOptionalIntParams, *int64](ctx, client, "echo_optional_int", EchoOptionalIntParams{Value: &n})
			require.NoError(t, err)
			require.NotNil(t, gi)
			assert.Equal(t, int64(7), *gi)
		})
	}
}

func TestAbsentOptional(t *testing.T) {
	// A bare nil result is representable in the json and arrow formats;
	// gob cannot encode a nil top-level pointer and reports it.
	t.Run("json", func(t *testing.T) {
		client := startConformanceServer(t, querywire.JSONWire(querywire.SerOptions{}, querywire.DeOptions{}))
		got, err := querywire.Call[EchoOptionalStringParams, *string](context.Background(), client, "echo_optional_string", EchoOptionalStringParams{})
		require.NoError(t, err)
		assert.Nil(t, got)
	})
	t.Run("arrow", func(t *testing.T) {
		client := startConformanceServer(t, querywire.ArrowWire(querywire.SerOptions{}, querywire.DeOptions{}))
		got, err := querywire.Call[EchoOptionalStringParams, *string](context.Background(), client, "echo_optional_string", EchoOptionalStringParams{})
		require.NoError(t, err)
		assert.Nil(t, got)
	})
	t.Run("gob", func(t *testing.T) {
		client := startConformanceServer(t, querywire.DefaultWireConfig())
		_, err := querywire.Call[EchoOptionalStringParams, *string](context.Background(), client, "echo_optional_string", EchoOptionalStringParams{})
		require.Error(t, err)

		var rpcErr *querywire.RpcError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, querywire.ErrTypeSerialization, rpcErr.Type)
	})
}

func sampleAllTypes() AllTypes {
	optStr := "opt"
	optInt := int64(11)
	return AllTypes{
		StrField:       "str",
		BytesField:     []byte{1, 2, 3},
		IntField:       99,
		FloatField:     1.5,
		BoolField:      true,
		ListOfInt:      []int64{4, 5},
		ListOfStr:      []string{"p", "q"},
		DictField:      map[string]int64{"k": 3},
		EnumField:      StatusClosed,
		NestedPoint:    Point{X: 1.5, Y: -2.5},
		OptionalStr:    &optStr,
		OptionalInt:    &optInt,
		OptionalNested: &Point{X: 0.5, Y: 0.25},
		ListOfNested:   []Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
		AnnotatedInt32: -12,
		AnnotatedFloat: 2.5,
		NestedList:     [][]int64{{1}, {2, 3}},
		DictStrStr:     map[string]string{"a": "b"},
	}
}

func TestStructRoundTrips(t *testing.T) {
	for name, wire := range wireConfigs() {
		t.Run(name, func(t *testing.T) {
			client := startConformanceServer(t, wire)
			ctx := context.Background()

			p, err := querywire.Call[EchoPointParams, Point](ctx, client, "echo_point", EchoPointParams{Point: Point{X: 1.5, Y: -2.5}})
			require.NoError(t, err)
			assert.Equal(t, Point{X: 1.5, Y: -2.5}, p)

			box := BoundingBox{TopLeft: Point{X: 0, Y: 10}, BottomRight: Point{X: 10, Y: 0}, Label: "b"}
			gotBox, err := querywire.Call[EchoBoundingBoxParams, BoundingBox](ctx, client, "echo_bounding_box", EchoBoundingBoxParams{Box: box})
			require.NoError(t, err)
			assert.Equal(t, box, gotBox)

			all := sampleAllTypes()
			gotAll, err := querywire.Call[EchoAllTypesParams, AllTypes](ctx, client, "echo_all_types", EchoAllTypesParams{Data: all})
			require.NoError(t, err)
			assert.Equal(t, all, gotAll)
		})
	}
}

func TestInspectPoint(t *testing.T) {
	client := startConformanceServer(t, querywire.DefaultWireConfig())

	got, err := querywire.Call[InspectPointParams, string](context.Background(), client, "inspect_point", InspectPointParams{Point: Point{X: 1.5, Y: -2.5}})
	require.NoError(t, err)
	assert.Equal(t, "Point(1.5, -2.5)", got)
}

func TestNarrowNumericTypes(t *testing.T) {
	for name, wire := range wireConfigs() {
		t.Run(name, func(t *testing.T) {
			client := startConformanceServer(t, wire)
			ctx := context.Background()

			i, err := querywire.Call[EchoInt32Params, int32](ctx, client, "echo_int32", EchoInt32Params{Value: -40000})
			require.NoError(t, err)
			assert.Equal(t, int32(-40000), i)

			f, err := querywire.Call[EchoFloat32Params, float32](ctx, client, "echo_float32", EchoFloat32Params{Value: 2.5})
			require.NoError(t, err)
			assert.Equal(t, float32(2.5), f)
		})
	}
}

func TestDefaults(t *testing.T) {
	client := startConformanceServer(t, querywire.DefaultWireConfig())
	ctx := context.Background()

	sum, err := querywire.Call[AddFloatsParams, float64](ctx, client, "add_floats", AddFloatsParams{A: 1.5, B: 2.25})
	require.NoError(t, err)
	assert.Equal(t, 3.75, sum)

	got, err := querywire.Call[ConcatenateParams, string](ctx, client, "concatenate", ConcatenateParams{Prefix: "a", Suffix: "b"})
	require.NoError(t, err)
	assert.Equal(t, "a-b", got)

	got, err = querywire.Call[ConcatenateParams, string](ctx, client, "concatenate", ConcatenateParams{Prefix: "a", Suffix: "b", Separator: "+"})
	require.NoError(t, err)
	assert.Equal(t, "a+b", got)

	got, err = querywire.Call[WithDefaultsParams, string](ctx, client, "with_defaults", WithDefaultsParams{Required: 7})
	require.NoError(t, err)
	assert.Equal(t, "required=7, optional_str=default, optional_int=42", got)
}

func TestErrorPropagation(t *testing.T) {
	client := startConformanceServer(t, querywire.DefaultWireConfig())
	ctx := context.Background()

	for _, tc := range []struct {
		method  Method
		errType string
	}{
		{"raise_value_error", "ValueError"},
		{"raise_runtime_error", "RuntimeError"},
		{"raise_type_error", "TypeError"},
	} {
		_, err := querywire.Call[RaiseErrorParams, string](ctx, client, tc.method, RaiseErrorParams{Message: "went wrong"})
		require.Error(t, err)
		var rpcErr *querywire.RpcError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, tc.errType, rpcErr.Type)
		assert.Equal(t, "went wrong", rpcErr.Message)
	}

	// debugErrors is on, so the plain error text crosses the wire.
	_, err := querywire.Call[RaiseErrorParams, string](ctx, client, "raise_internal_error", RaiseErrorParams{Message: "disk on fire"})
	require.Error(t, err)
	var rpcErr *querywire.RpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, querywire.ErrTypeHandler, rpcErr.Type)
	assert.Contains(t, rpcErr.Message, "disk on fire")
}

func TestClientDirectedLogs(t *testing.T) {
	client := startConformanceServer(t, querywire.DefaultWireConfig())

	var mu sync.Mutex
	var logs []querywire.LogMessage
	client.OnLog = func(msg querywire.LogMessage) {
		mu.Lock()
		defer mu.Unlock()
		logs = append(logs, msg)
	}

	got, err := querywire.Call[EchoWithLogParams, string](context.Background(), client, "echo_with_multi_logs", EchoWithLogParams{Value: "v"})
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	mu.Lock()
	require.Len(t, logs, 3)
	assert.Equal(t, querywire.LogDebug, logs[0].Level)
	assert.Equal(t, querywire.LogInfo, logs[1].Level)
	assert.Equal(t, querywire.LogWarn, logs[2].Level)
	logs = nil
	mu.Unlock()

	_, err = querywire.Call[EchoWithLogParams, string](context.Background(), client, "echo_with_log_extras", EchoWithLogParams{Value: "detail"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, logs, 1)
	require.Len(t, logs[0].Extras, 2)
	assert.Equal(t, querywire.KV{Key: "source", Value: "conformance"}, logs[0].Extras[0])
	assert.Equal(t, querywire.KV{Key: "detail", Value: "detail"}, logs[0].Extras[1])
}

func TestUnknownMethodListsAvailable(t *testing.T) {
	client := startConformanceServer(t, querywire.DefaultWireConfig())

	_, err := querywire.Call[EchoStringParams, string](context.Background(), client, "nope", EchoStringParams{Value: "x"})
	require.Error(t, err)

	var rpcErr *querywire.RpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, querywire.ErrTypeUnknownMethod, rpcErr.Type)
	assert.Contains(t, rpcErr.Message, `unknown method "nope"`)
	assert.Contains(t, rpcErr.Message, "echo_string")
}
