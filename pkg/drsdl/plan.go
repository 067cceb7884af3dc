// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package drsdl

import "fmt"

// PlanParts splits an object of the given size into contiguous, non-
// overlapping byte-range parts of at most partSize bytes each, per spec
// §4.2. The ranges are inclusive on both ends (HTTP Range semantics).
//
// size == 0 returns a single zero-length part ([0,-1]) handled specially by
// the caller (spec §4.2 edge case: empty object writes a zero-byte file and
// skips the download phase entirely) — PlanParts itself never special-cases
// it beyond returning that one sentinel part, so callers must check size
// before iterating blindly.
func PlanParts(size, partSize int64) ([]Part, error) {
	if size < 0 {
		return nil, fmt.Errorf("drsdl: negative size %d", size)
	}
	if partSize <= 0 {
		return nil, fmt.Errorf("drsdl: non-positive partSize %d", partSize)
	}
	if size == 0 {
		return []Part{{Start: 0, End: -1}}, nil
	}

	n := size / partSize
	if size%partSize != 0 {
		n++
	}
	parts := make([]Part, 0, n)
	for start := int64(0); start < size; start += partSize {
		end := start + partSize - 1
		if end >= size {
			end = size - 1
		}
		parts = append(parts, Part{Start: start, End: end})
	}
	return parts, nil
}

// PartFileName returns the on-disk name for a part, matching the
// <name>.<start>.<end>.part convention that makes resumption possible
// without any sidecar state file (spec §3 invariant, §9 design notes).
func PartFileName(objectName string, p Part) string {
	return fmt.Sprintf("%s.%d.%d.part", objectName, p.Start, p.End)
}
