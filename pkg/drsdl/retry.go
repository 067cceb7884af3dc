// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package drsdl

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// backoffDelay returns the wait before retry attempt n (0-indexed),
// matching original_source/drs_downloader/manager.py's retry loop exactly:
// 2**attempt seconds plus a random fractional second. This is bespoke to
// the original system's observed retry cadence, not a generic exponential
// backoff policy, so it is hand-rolled rather than pulled from a backoff
// library (see DESIGN.md).
func backoffDelay(attempt int) time.Duration {
	secs := math.Pow(2, float64(attempt)) + rand.Float64()
	return time.Duration(secs * float64(time.Second))
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes first.
// Returns ctx.Err() if cancelled before the delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// maxPartAttempts bounds the part-fetch retry loop (spec §4.3 step 2: "up
// to 3 attempts").
const maxPartAttempts = 3

// fetchPartWithRetry calls cl.DownloadPart, retrying transient failures with
// backoffDelay up to maxPartAttempts times. A signature-expiry or
// non-recoverable classification is returned immediately without retrying:
// the object downloader records it on obj and the batch orchestrator
// decides what to do next (spec §4.3 step 2, §7).
func fetchPartWithRetry(ctx context.Context, cl Client, obj *Object, part Part, destPath string, stats *Statistics) error {
	var lastErr error
	for attempt := 0; attempt < maxPartAttempts; attempt++ {
		err := cl.DownloadPart(ctx, obj, part, destPath)
		if err == nil {
			stats.FileOpened()
			stats.FileClosed()
			return nil
		}
		lastErr = err

		var pe *ProviderError
		if !errors.As(err, &pe) || pe.Kind == RecoverableTransient {
			if attempt == maxPartAttempts-1 {
				break
			}
			if sleepErr := sleepCtx(ctx, backoffDelay(attempt)); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		// NotRecoverable or RecoverableSignatureExpired: no point retrying
		// this part, the object is abandoned for this cycle.
		return err
	}
	return lastErr
}
