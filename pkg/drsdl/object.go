// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package drsdl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// DownloadObject fetches every part of obj, reassembles them in order, and
// verifies the result, per spec §4.3. obj must already be resolved and
// signed; any error recorded on obj before this call causes DownloadObject
// to return immediately without attempting network I/O (spec §4.4 Phase D:
// a failed-to-sign object is never attempted).
//
// maxPartHandlers bounds in-flight part downloads for this single object,
// independent of the batch-wide maxDownloaders bound the orchestrator
// applies across objects (spec §5 "nested bounds").
//
// By default, part files left on disk after a failed attempt are retained so
// a later invocation can resume from them (spec §4.3 step 4, §7 Integrity
// row). strictCleanup reverses that when a part fetch fails: every part file
// of the object, including ones kept from an earlier invocation, is deleted,
// so the next invocation starts the object from scratch. Part files are still
// retained after a checksum or size verification failure.
func DownloadObject(ctx context.Context, cl Client, obj *Object, destDir string, partSize int64, maxPartHandlers int, stats *Statistics, allowDuplicate, strictCleanup bool) error {
	if obj.Failed() {
		return fmt.Errorf("drsdl: %s already has recorded errors, skipping download", obj.Name)
	}

	if obj.Size == 0 {
		return writeEmptyObject(obj, destDir, allowDuplicate)
	}

	parts, err := PlanParts(obj.Size, partSize)
	if err != nil {
		obj.AddError(err.Error())
		return err
	}

	partPaths := make([]string, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPartHandlers)

	for i, p := range parts {
		i, p := i, p
		partPath := filepath.Join(destDir, PartFileName(obj.Name, p))
		partPaths[i] = partPath

		if ExistingPartUsable(partPath, p.Start, p.End) {
			continue
		}

		g.Go(func() error {
			if err := fetchPartWithRetry(gctx, cl, obj, p, partPath, stats); err != nil {
				return fmt.Errorf("part %d-%d: %w", p.Start, p.End, err)
			}
			return nil
		})
	}

	obj.PartPaths = partPaths
	if err := g.Wait(); err != nil {
		obj.AddError(err.Error())
		if strictCleanup {
			removeParts(partPaths)
			obj.PartPaths = nil
		}
		return err
	}

	finalName, err := reserveFinalName(destDir, obj.Name, allowDuplicate)
	if err != nil {
		obj.AddError(err.Error())
		return err
	}

	if err := reassemble(destDir, finalName, partPaths); err != nil {
		obj.AddError(err.Error())
		return err
	}
	obj.Name = finalName

	finalPath := filepath.Join(destDir, finalName)
	if obj.Checksum.Algorithm != "" {
		if err := VerifyChecksum(finalPath, obj.Checksum); err != nil {
			obj.AddError(err.Error())
			return err
		}
	}
	if err := VerifySize(finalPath, obj.Size); err != nil {
		obj.AddError(err.Error())
		return err
	}

	// Parts are only unlinked once the reassembled file has passed both
	// checks, matching spec §4.3 step 4 and §7's Integrity row: a mismatch
	// must leave the part files in place for the next invocation to resume,
	// not just the bad output.
	removeParts(partPaths)
	obj.PartPaths = nil
	return nil
}

// writeEmptyObject handles the zero-byte edge case directly: a single part
// would be a degenerate [0,-1] range, so instead a zero-length file is
// created straight away and neither a checksum nor a size check is run on it.
func writeEmptyObject(obj *Object, destDir string, allowDuplicate bool) error {
	finalName, err := reserveFinalName(destDir, obj.Name, allowDuplicate)
	if err != nil {
		obj.AddError(err.Error())
		return err
	}
	f, err := os.Create(filepath.Join(destDir, finalName))
	if err != nil {
		obj.AddError(err.Error())
		return err
	}
	if err := f.Close(); err != nil {
		obj.AddError(err.Error())
		return err
	}
	obj.Name = finalName
	return nil
}

// reserveFinalName picks the on-disk name for the reassembled file,
// appending a (1), (2), ... suffix if a file with the base name already
// exists, mirroring original_source/drs_downloader/manager.py's
// _run_download_parts collision loop exactly. When allowDuplicate is set
// the caller has already chosen to overwrite in place, so no suffix is
// applied.
func reserveFinalName(destDir, name string, allowDuplicate bool) (string, error) {
	if allowDuplicate {
		return name, nil
	}
	candidate := name
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	for i := 1; ; i++ {
		_, err := os.Stat(filepath.Join(destDir, candidate))
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s(%d)%s", base, i, ext)
	}
}

// reassemble concatenates partPaths, which the caller built in ascending
// byte-range order from PlanParts, into destDir/finalName. Parts are left on
// disk here; the caller only unlinks them once the reassembled file has
// passed checksum/size verification (spec §4.3 step 4, §7 Integrity row), so
// a verification failure leaves both the bad output and the parts it came
// from for inspection and resumption.
func reassemble(destDir, finalName string, partPaths []string) error {
	out, err := os.Create(filepath.Join(destDir, finalName))
	if err != nil {
		return err
	}
	defer out.Close()

	buf := make([]byte, 10*1024*1024)
	for _, p := range partPaths {
		if err := copyPart(out, p, buf); err != nil {
			return err
		}
	}
	return nil
}

// removeParts deletes each path in partPaths, ignoring files that were never
// created (a part the errgroup cancelled before it ran) or already removed.
func removeParts(partPaths []string) {
	for _, p := range partPaths {
		if p == "" {
			continue
		}
		_ = os.Remove(p)
	}
}

func copyPart(dst io.Writer, partPath string, buf []byte) error {
	f, err := os.Open(partPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.CopyBuffer(dst, f, buf)
	return err
}
