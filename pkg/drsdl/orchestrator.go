// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package drsdl

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// CostPerGiB is the linear price-estimate constant used by the pre-flight
// message (spec §4.4 Phase B, §9 "Cost estimation"). The original system
// leaves the exact figure undecided ("may be zero"); it has no behavioral
// effect and is left at zero here, named so a deployer can patch it at
// build time without touching orchestration logic.
const CostPerGiB = 0.00

// BatchResult is the outcome of one RunBatch invocation: the final state of
// every Object plus the process-wide open-file watermark observed.
type BatchResult struct {
	Objects    []*Object
	PeakOpenFD int64
}

// Succeeded reports how many Objects in the result have no recorded error.
func (r BatchResult) Succeeded() int {
	n := 0
	for _, o := range r.Objects {
		if !o.Failed() {
			n++
		}
	}
	return n
}

// Err returns a multierror aggregating every failed Object's errors, or nil
// if every Object succeeded, so a caller has one error value to check while
// still being able to inspect each Object's own failures (spec §4.4 Phase E).
func (r BatchResult) Err() error {
	var result *multierror.Error
	for _, o := range r.Objects {
		if !o.Failed() {
			continue
		}
		for _, msg := range o.Errors() {
			result = multierror.Append(result, fmt.Errorf("%s: %s", o.SelfURI, msg))
		}
	}
	return result.ErrorOrNil()
}

// RunBatch drives the three stages over the full manifest: resolve, sign,
// download, in bounded batches, exactly as spec §4.4 describes (Phases
// A through E). objects must already be hydrated with SelfURI/ID from the
// manifest and nothing else.
func RunBatch(ctx context.Context, log zerolog.Logger, cl Client, objects []*Object, destDir string, settings Settings) (BatchResult, error) {
	stats := &Statistics{}

	// Phase A — resolve. An unrecognized checksum algorithm is caught here,
	// immediately after resolve and before any signing or part fetching, so
	// a doomed-to-fail verification never costs a network round trip
	// (spec §4.3 edge cases, §8 S9).
	if err := runBounded(ctx, objects, settings.MaxSimultaneousObjectRetrievers, func(ctx context.Context, o *Object) error {
		if err := cl.Resolve(ctx, o); err != nil {
			o.AddError(err.Error())
			log.Warn().Str("uri", o.SelfURI).Err(err).Msg("resolve failed")
			return nil // per-object error, not a batch abort (spec §4.4 Phase A)
		}
		if o.Size == 0 {
			o.AddError("resolved size is zero")
			return nil
		}
		if _, err := newHash(o.Checksum.Algorithm); err != nil {
			o.AddError(err.Error())
		}
		return nil
	}); err != nil {
		return BatchResult{}, err
	}

	if allFailed(objects) {
		return BatchResult{Objects: objects}, ErrAllResolveFailed
	}

	// Phase B — pre-flight: totals, cost estimate, sort, workload shaping.
	var totalBytes int64
	for _, o := range objects {
		if !o.Failed() {
			totalBytes += o.Size
		}
	}
	if totalBytes == 0 {
		return BatchResult{Objects: objects}, ErrZeroTotalBytes
	}
	// Repeats Phase A's checksum-algorithm check over the objects that are
	// still without errors, before any signing or part fetching.
	for _, o := range objects {
		if o.Failed() {
			continue
		}
		if _, err := newHash(o.Checksum.Algorithm); err != nil {
			o.AddError(err.Error())
		}
	}
	log.Info().
		Int64("total_bytes", totalBytes).
		Float64("estimated_cost_usd", float64(totalBytes)/float64(gb)*CostPerGiB).
		Msg("preflight")

	sort.SliceStable(objects, func(i, j int) bool { return objects[i].Size < objects[j].Size })
	settings.OptimizeWorkload(objects)
	log.Info().
		Int64("part_size", settings.PartSize).
		Int("max_part_handlers", settings.MaxSimultaneousPartHandlers).
		Int("max_downloaders", settings.MaxSimultaneousDownloaders).
		Msg("workload shaped")

	// Phase C — skip already-complete files.
	pending := make([]*Object, 0, len(objects))
	for _, o := range objects {
		if o.Failed() {
			continue
		}
		skip, err := ShouldSkipExisting(destDir, o.Name, settings.AllowDuplicate)
		if err != nil {
			return BatchResult{}, err
		}
		if skip {
			log.Info().Str("name", o.Name).Msg("already present, skipping")
			continue
		}
		pending = append(pending, o)
	}

	// Phase D — sign-and-download in chunks of maxSigners, with one
	// re-sign retry per chunk on a recoverable-signature error.

	for start := 0; start < len(pending); start += settings.MaxSimultaneousObjectSigners {
		end := start + settings.MaxSimultaneousObjectSigners
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		if err := runDownloadChunk(ctx, log, cl, chunk, destDir, settings, stats); err != nil {
			return BatchResult{}, err
		}
		if anyRecoverableSignature(chunk) {
			for _, o := range chunk {
				o.ClearErrors()
			}
			log.Warn().Int("chunk_size", len(chunk)).Msg("re-signing chunk after expired signature")
			if err := runDownloadChunk(ctx, log, cl, chunk, destDir, settings, stats); err != nil {
				return BatchResult{}, err
			}
		}
	}

	// Phase E — report.
	for _, o := range objects {
		if o.Failed() {
			log.Error().Str("name", o.Name).Int64("size", o.Size).Strs("errors", o.Errors()).Msg("ERROR")
		} else {
			log.Info().Str("name", o.Name).Int64("size", o.Size).Msg("OK")
		}
	}
	result := BatchResult{Objects: objects, PeakOpenFD: stats.Peak()}
	log.Info().Int("succeeded", result.Succeeded()).Int("total", len(objects)).Msg("batch complete")
	return result, nil
}

// runDownloadChunk signs every Object in chunk (bounded concurrently), then
// downloads the signed ones (bounded concurrently), matching spec §4.4
// Phase D's sign-then-download ordering within a chunk.
func runDownloadChunk(ctx context.Context, log zerolog.Logger, cl Client, chunk []*Object, destDir string, settings Settings, stats *Statistics) error {
	if err := runBounded(ctx, chunk, settings.MaxSimultaneousObjectSigners, func(ctx context.Context, o *Object) error {
		if err := cl.Sign(ctx, o, settings.UserProject); err != nil {
			o.AddError(err.Error())
			log.Warn().Str("uri", o.SelfURI).Err(err).Msg("sign failed")
		}
		return nil
	}); err != nil {
		return err
	}

	return runBounded(ctx, chunk, settings.MaxSimultaneousDownloaders, func(ctx context.Context, o *Object) error {
		if o.Failed() {
			return nil
		}
		if err := DownloadObject(ctx, cl, o, destDir, settings.PartSize, settings.MaxSimultaneousPartHandlers, stats, settings.AllowDuplicate, settings.StrictCleanup); err != nil {
			log.Warn().Str("name", o.Name).Err(err).Msg("download failed")
		}
		return nil
	})
}

// runBounded runs fn over each item with at most limit concurrently
// in-flight, returning the first non-nil error (other than per-item errors
// already recorded on the Object, which fn should swallow as spec §4.4
// dictates no single Object failure halts the batch).
func runBounded(ctx context.Context, objects []*Object, limit int, fn func(context.Context, *Object) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, o := range objects {
		o := o
		g.Go(func() error { return fn(gctx, o) })
	}
	return g.Wait()
}

func allFailed(objects []*Object) bool {
	for _, o := range objects {
		if !o.Failed() {
			return false
		}
	}
	return len(objects) > 0
}

// anyRecoverableSignature reports whether any Object in chunk was abandoned
// with a signature-expiry error by the object downloader's part-fetch loop,
// which triggers exactly one re-sign-and-retry per chunk (spec §4.4 Phase D,
// §7 "Cross-Object signature expiry").
func anyRecoverableSignature(chunk []*Object) bool {
	for _, o := range chunk {
		for _, msg := range o.Errors() {
			if containsExpired(msg) {
				return true
			}
		}
	}
	return false
}
