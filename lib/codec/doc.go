// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the registry's CBOR configuration.
//
// JSON is used for anything a human or an HTTP client reads. CBOR is
// used for catalog snapshots (see lib/catalog), where the output must
// be compact and byte-for-byte reproducible: the encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2), so exporting the same
// catalog twice yields identical files and snapshots can be compared
// by digest.
//
//	data, err := codec.Marshal(snapshot)
//	err = codec.Unmarshal(data, &snapshot)
//
// Streams use [NewEncoder] and [NewDecoder]. The decoder rejects
// duplicate map keys and ignores unknown fields, so a newer snapshot
// with extra fields still imports into an older server.
package codec
