// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package drsdl

import (
	"context"
	"sync"
)

// Client is the capability contract a DRS backend must satisfy. The part
// planner, object downloader, and batch orchestrator depend only on this
// interface; they never know whether they're talking to Gen3, Terra, or the
// in-process mock.
type Client interface {
	// Resolve fetches object metadata (size, name, checksum) for a DRS
	// URI and populates the corresponding fields on obj. Most backends
	// leave obj.AccessURL for Sign to populate; a backend whose resolve
	// call happens to return an access URL in the same round trip (Terra's
	// Martha) may cache it here, but Sign is still always called and must
	// still enforce any access-policy checks (e.g. requester-pays).
	Resolve(ctx context.Context, obj *Object) error

	// Sign produces a short-lived access URL for obj and stores it on
	// obj.AccessURL/obj.AccessType. Some backends (Terra/Martha) do this
	// in the same round trip as Resolve and simply cache the result.
	// userProject is the caller-supplied requester-pays billing project
	// (possibly empty); backends that need it for a given object's access
	// method must treat its absence as a per-object policy error, not a
	// transport failure (spec §4.1).
	Sign(ctx context.Context, obj *Object, userProject string) error

	// DownloadPart fetches the byte range described by part from obj's
	// current AccessURL and writes it to destPath. Implementations must
	// classify failures with ClassifyHTTPError (or an equivalent) so
	// callers can tell a signature expiry from a transient transport
	// error from a fatal one.
	DownloadPart(ctx context.Context, obj *Object, part Part, destPath string) error
}

// Statistics tracks process-wide resource usage shared across every
// provider call during a single invocation, generalizing the original
// Python implementation's /proc-listing open-file watermark into a plain
// mutex-guarded counter (spec §3 "Shared state").
type Statistics struct {
	mu      sync.Mutex
	current int64
	peak    int64
}

// FileOpened increments the open-file counter and updates the watermark.
// Providers and the object downloader call this once per os.Create/os.Open.
func (s *Statistics) FileOpened() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current++
	if s.current > s.peak {
		s.peak = s.current
	}
}

// FileClosed decrements the open-file counter.
func (s *Statistics) FileClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current--
}

// Peak returns the highest concurrent open-file count observed so far.
func (s *Statistics) Peak() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}
