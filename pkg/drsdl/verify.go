// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package drsdl

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// newHash returns a fresh hash.Hash for a recognized checksum algorithm, or
// an error naming the unrecognized algorithm (spec §4.3 edge cases, §8 S9).
// This mirrors the small fixed registry the Python client validates against
// in original_source/drs_downloader/models.py's DrsObject checksum handling.
func newHash(algorithm string) (hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("drsdl: unrecognized checksum algorithm %q", algorithm)
	}
}

// VerifyChecksum streams path through the algorithm named by cs and compares
// the resulting digest against cs.Hex, case-insensitively.
func VerifyChecksum(path string, cs Checksum) error {
	h, err := newHash(cs.Algorithm)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, cs.Hex) {
		return &VerificationError{Name: path, Method: cs.Algorithm, Expected: cs.Hex, Actual: got}
	}
	return nil
}

// VerifySize confirms path is exactly want bytes.
func VerifySize(path string, want int64) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.Size() != want {
		return &VerificationError{
			Name:     path,
			Method:   "size",
			Expected: fmt.Sprintf("%d", want),
			Actual:   fmt.Sprintf("%d", fi.Size()),
		}
	}
	return nil
}

// ShouldSkipExisting reports whether obj's final output file already exists
// in destDir and should be left untouched, per spec §4.3's "skip-existing"
// rule: a completed file with the expected name is only ever re-fetched when
// the caller passes allowDuplicate (the --duplicate flag), grounded on
// original_source/drs_downloader/manager.py's filter_existing_files, which
// filters purely on name presence — it does not verify size or checksum, and
// it does not rename around a collision; --duplicate simply lets a new
// download overwrite the existing file in place.
func ShouldSkipExisting(destDir, name string, allowDuplicate bool) (bool, error) {
	if allowDuplicate {
		return false, nil
	}
	entries, err := os.ReadDir(destDir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, e := range entries {
		if e.Name() == name {
			return true, nil
		}
	}
	return false, nil
}

// ExistingPartUsable reports whether the part file at path already holds
// exactly the bytes the range [start,end] requires, letting a second
// invocation resume without re-downloading it. Mirrors
// original_source/drs_downloader/manager.py's check_existing_parts exactly:
// a size match is sufficient, no digest is computed per-part.
func ExistingPartUsable(path string, start, end int64) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	want := end - start + 1
	return fi.Size() == want
}
