// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package drsdl

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestVerifyChecksumMatches(t *testing.T) {
	dir := t.TempDir()
	data := []byte("hello drs world")
	path := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	sum := md5.Sum(data)
	cs := Checksum{Algorithm: "md5", Hex: hex.EncodeToString(sum[:])}
	if err := VerifyChecksum(path, cs); err != nil {
		t.Fatalf("VerifyChecksum: %v", err)
	}
}

func TestVerifyChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(path, []byte("actual"), 0o644); err != nil {
		t.Fatal(err)
	}
	cs := Checksum{Algorithm: "md5", Hex: "deadbeef"}
	err := VerifyChecksum(path, cs)
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	var ve *VerificationError
	if !asVerificationError(err, &ve) {
		t.Fatalf("error is not *VerificationError: %v", err)
	}
}

func TestVerifyChecksumUnrecognizedAlgorithm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	os.WriteFile(path, []byte("x"), 0o644)
	if err := VerifyChecksum(path, Checksum{Algorithm: "crc64", Hex: "00"}); err == nil {
		t.Fatal("expected unrecognized algorithm error")
	}
}

func TestVerifySize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	os.WriteFile(path, []byte("12345"), 0o644)
	if err := VerifySize(path, 5); err != nil {
		t.Fatalf("VerifySize: %v", err)
	}
	if err := VerifySize(path, 6); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestExistingPartUsable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "obj.0.9.part")
	os.WriteFile(path, make([]byte, 10), 0o644)
	if !ExistingPartUsable(path, 0, 9) {
		t.Fatal("expected existing part to be usable")
	}
	if ExistingPartUsable(path, 0, 10) {
		t.Fatal("expected size-mismatched part to be unusable")
	}
	if ExistingPartUsable(filepath.Join(dir, "missing.part"), 0, 9) {
		t.Fatal("expected missing part to be unusable")
	}
}

func TestShouldSkipExisting(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "done.txt"), []byte("x"), 0o644)

	skip, err := ShouldSkipExisting(dir, "done.txt", false)
	if err != nil || !skip {
		t.Fatalf("ShouldSkipExisting = %v, %v, want true, nil", skip, err)
	}

	skip, err = ShouldSkipExisting(dir, "missing.txt", false)
	if err != nil || skip {
		t.Fatalf("ShouldSkipExisting = %v, %v, want false, nil", skip, err)
	}

	skip, err = ShouldSkipExisting(dir, "done.txt", true)
	if err != nil || skip {
		t.Fatalf("ShouldSkipExisting with allowDuplicate = %v, %v, want false, nil", skip, err)
	}
}

// asVerificationError avoids importing errors.As at the top of the test
// file twice; kept trivial since VerificationError is never wrapped.
func asVerificationError(err error, target **VerificationError) bool {
	ve, ok := err.(*VerificationError)
	if !ok {
		return false
	}
	*target = ve
	return true
}
