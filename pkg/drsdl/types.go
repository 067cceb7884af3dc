// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package drsdl

import "sync"

// Checksum identifies the digest algorithm and expected hex digest for an
// Object, per the GA4GH DRS Checksum schema.
type Checksum struct {
	Algorithm string // e.g. "md5", "sha256"
	Hex       string // lowercase hex-encoded digest
}

// Object is the central manifest-row entity. It moves through resolve,
// sign, and download stages, accumulating state; callers never construct
// one directly except via NewObject from a manifest URI.
type Object struct {
	ID       string // opaque DRS identifier, e.g. "dg.anv0:abc123"
	SelfURI  string // original manifest URI, e.g. "drs://dg.4503:abc123"
	Name     string // filename reported by the service; also the on-disk name
	Size     int64
	Checksum Checksum

	AccessURL  string // signed HTTPS URL; empty until Sign runs
	AccessType string // transport hint: "gs", "s3", "none", ...

	PartPaths []string // completed part paths, populated during download

	mu     sync.Mutex
	errors []string
}

// NewObject creates an Object in its post-manifest, pre-resolve state.
func NewObject(selfURI, id string) *Object {
	return &Object{SelfURI: selfURI, ID: id}
}

// AddError records a non-fatal, per-object error. Safe for concurrent use
// since a single Object may be touched by one stage's task while another
// goroutine inspects Failed for reporting.
func (o *Object) AddError(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, msg)
}

// Errors returns a copy of the accumulated error messages.
func (o *Object) Errors() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.errors))
	copy(out, o.errors)
	return out
}

// Failed reports whether the Object has any recorded error. A failed
// Object is never signed or downloaded in later stages of the same
// invocation.
func (o *Object) Failed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.errors) > 0
}

// ClearErrors drops all recorded errors, used when the orchestrator retries
// a chunk after a signature-expiry re-sign (spec §4.4 Phase D).
func (o *Object) ClearErrors() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = nil
}

// Part describes one byte range of an Object, expressed in the HTTP
// inclusive form (start and end are both part of the range).
type Part struct {
	Start int64
	End   int64 // inclusive
}

// Len returns the number of bytes covered by the part.
func (p Part) Len() int64 { return p.End - p.Start + 1 }
