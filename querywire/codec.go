// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package querywire

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// WireFormat identifies the encoding strategy used on the wire. Both ends
// of a deployment must agree on the strategy and its options; nothing in
// the byte stream announces which one is in use.
type WireFormat int

const (
	// FormatGob is the default strategy and the interoperability
	// baseline: Go's self-describing binary encoding.
	FormatGob WireFormat = iota
	// FormatJSON is a self-describing text strategy.
	FormatJSON
	// FormatArrow is a fixed-schema strategy carrying each value as a
	// single-row Arrow IPC stream. See the package documentation for the
	// supported value shapes.
	FormatArrow
)

func (f WireFormat) String() string {
	switch f {
	case FormatGob:
		return "gob"
	case FormatJSON:
		return "json"
	case FormatArrow:
		return "arrow"
	default:
		return fmt.Sprintf("WireFormat(%d)", int(f))
	}
}

// SerOptions are the serialize-side options of a WireConfig. They are
// independent of the deserialize-side options: a config may, for example,
// compress outbound payloads while expecting uncompressed inbound ones.
type SerOptions struct {
	// Compression, when non-zero, zstd-compresses the encoded bytes at
	// the given level as the final serialization step.
	Compression zstd.EncoderLevel
}

// DeOptions are the deserialize-side options of a WireConfig.
type DeOptions struct {
	// Compressed declares that inbound payloads are zstd-compressed and
	// must be decompressed before decoding.
	Compressed bool
	// MaxDecodedSize caps the decompressed size in bytes. Zero uses the
	// zstd decoder default.
	MaxDecodedSize uint64
}

// WireConfig selects the wire encoding strategy and its per-direction
// options. It is a value; copy it freely. The zero value is the default
// configuration: FormatGob with no options.
//
// Gob output is deterministic for map-free values. Values containing maps
// round-trip correctly under every strategy, but gob does not re-encode
// them byte-identically; FormatJSON and FormatArrow order map keys.
type WireConfig struct {
	Format WireFormat
	Ser    SerOptions
	De     DeOptions
}

// DefaultWireConfig returns the default strategy: FormatGob, no options.
func DefaultWireConfig() WireConfig {
	return WireConfig{Format: FormatGob}
}

// GobWire returns a gob-strategy config with the given options.
func GobWire(ser SerOptions, de DeOptions) WireConfig {
	return WireConfig{Format: FormatGob, Ser: ser, De: de}
}

// JSONWire returns a JSON-strategy config with the given options.
func JSONWire(ser SerOptions, de DeOptions) WireConfig {
	return WireConfig{Format: FormatJSON, Ser: ser, De: de}
}

// ArrowWire returns an Arrow-strategy config with the given options.
func ArrowWire(ser SerOptions, de DeOptions) WireConfig {
	return WireConfig{Format: FormatArrow, Ser: ser, De: de}
}

// Serialize encodes val with the selected strategy and applies the
// serialize-side options. Failures are reported as SerializeError.
func (c WireConfig) Serialize(val any) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch c.Format {
	case FormatGob:
		var buf bytes.Buffer
		if err = gob.NewEncoder(&buf).Encode(val); err == nil {
			data = buf.Bytes()
		}
	case FormatJSON:
		data, err = json.Marshal(val)
	case FormatArrow:
		data, err = arrowEncode(val)
	default:
		err = fmt.Errorf("unsupported wire format %d", int(c.Format))
	}
	if err != nil {
		return nil, serializeErr(err)
	}
	if c.Ser.Compression != 0 {
		data, err = zstdCompress(data, c.Ser.Compression)
		if err != nil {
			return nil, serializeErr(err)
		}
	}
	return data, nil
}

// Deserialize decodes data into out, which must be a non-nil pointer to a
// value of the type the sender encoded. Failures, including undecodable
// or truncated input, are reported as DeserializeError.
func (c WireConfig) Deserialize(data []byte, out any) error {
	if c.De.Compressed {
		raw, err := zstdDecompress(data, c.De.MaxDecodedSize)
		if err != nil {
			return deserializeErr(err)
		}
		data = raw
	}
	var err error
	switch c.Format {
	case FormatGob:
		err = gob.NewDecoder(bytes.NewReader(data)).Decode(out)
	case FormatJSON:
		err = json.Unmarshal(data, out)
	case FormatArrow:
		err = arrowDecode(data, out)
	default:
		err = fmt.Errorf("unsupported wire format %d", int(c.Format))
	}
	if err != nil {
		return deserializeErr(err)
	}
	return nil
}

func zstdCompress(data []byte, level zstd.EncoderLevel) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func zstdDecompress(data []byte, maxSize uint64) ([]byte, error) {
	var opts []zstd.DOption
	if maxSize > 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(maxSize))
	}
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
