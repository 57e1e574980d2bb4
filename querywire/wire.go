// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package querywire

// transportPackage is the envelope exchanged over a Channel. The name and
// the query are encoded independently, then the pair is encoded again as
// one unit. A receiver can therefore open the envelope without knowing
// either inner type, decode the name, and hand the still-encoded query
// bytes to whatever the name selects.
type transportPackage struct {
	NameBytes  []byte `json:"name_bytes" querywire:"name_bytes"`
	QueryBytes []byte `json:"query_bytes" querywire:"query_bytes"`
}

// packEnvelope encodes name and wraps it with the already-encoded query
// bytes into a single encoded envelope. queryBytes is aliased, not copied.
func packEnvelope(wire WireConfig, name any, queryBytes []byte) ([]byte, error) {
	nameBytes, err := wire.Serialize(name)
	if err != nil {
		return nil, err
	}
	return wire.Serialize(transportPackage{
		NameBytes:  nameBytes,
		QueryBytes: queryBytes,
	})
}

// openEnvelope decodes one received envelope back into its parts.
func openEnvelope(wire WireConfig, data []byte) (transportPackage, error) {
	var pkg transportPackage
	if err := wire.Deserialize(data, &pkg); err != nil {
		return transportPackage{}, err
	}
	return pkg, nil
}
