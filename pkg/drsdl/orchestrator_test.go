// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package drsdl

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

// stubClient is a minimal in-package Client used to exercise RunBatch
// without depending on internal/provider/mock (which imports this
// package and would create an import cycle).
type stubClient struct {
	data map[string][]byte // id -> content

	failResolve  map[string]bool
	failSign     map[string]bool
	badChecksum  map[string]bool
	badAlgorithm map[string]bool

	expireOnce map[string]bool // id -> already re-signed
}

func newStubClient() *stubClient {
	return &stubClient{
		data:         make(map[string][]byte),
		failResolve:  make(map[string]bool),
		failSign:     make(map[string]bool),
		badChecksum:  make(map[string]bool),
		badAlgorithm: make(map[string]bool),
		expireOnce:   make(map[string]bool),
	}
}

func (c *stubClient) Resolve(ctx context.Context, obj *Object) error {
	if c.failResolve[obj.ID] {
		return errString("resolve failed for " + obj.ID)
	}
	data := c.data[obj.ID]
	obj.Name = obj.ID + ".bin"
	obj.Size = int64(len(data))
	sum := md5Hex(data)
	if c.badChecksum[obj.ID] {
		sum = "deadbeefdeadbeefdeadbeefdeadbeef"
	}
	algo := "md5"
	if c.badAlgorithm[obj.ID] {
		algo = "crc64"
	}
	obj.Checksum = Checksum{Algorithm: algo, Hex: sum}
	return nil
}

func (c *stubClient) Sign(ctx context.Context, obj *Object, userProject string) error {
	if c.failSign[obj.ID] {
		return errString("sign failed for " + obj.ID)
	}
	obj.AccessURL = "mock://" + obj.ID
	if _, wantsExpiry := c.expireOnce[obj.ID]; wantsExpiry && !c.expireOnce[obj.ID] {
		c.expireOnce[obj.ID] = true
		obj.AccessURL += "?expired=1"
	}
	return nil
}

func (c *stubClient) DownloadPart(ctx context.Context, obj *Object, part Part, destPath string) error {
	if len(obj.AccessURL) >= 8 && obj.AccessURL[len(obj.AccessURL)-8:] == "xpired=1" {
		return NewProviderError(RecoverableSignatureExpired, errString("token has expired"))
	}
	data := c.data[obj.ID]
	end := part.End
	if end > int64(len(data))-1 {
		end = int64(len(data)) - 1
	}
	chunk := data[part.Start : end+1]
	return os.WriteFile(destPath, chunk, 0o644)
}

type errString string

func (e errString) Error() string { return string(e) }

func md5Hex(data []byte) string {
	h := mustNewHash("md5")
	h.Write(data)
	return hexEncode(h.Sum(nil))
}

func mustNewHash(algo string) interface {
	Write([]byte) (int, error)
	Sum([]byte) []byte
} {
	h, err := newHash(algo)
	if err != nil {
		panic(err)
	}
	return h
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

func discardLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestRunBatchHappyPath(t *testing.T) {
	dir := t.TempDir()
	cl := newStubClient()
	cl.data["obj-1"] = []byte("hello world, this is object one")
	cl.data["obj-2"] = []byte("a much longer payload for object two, repeated. ")

	objects := []*Object{
		NewObject("drs://x/obj-1", "obj-1"),
		NewObject("drs://x/obj-2", "obj-2"),
	}

	settings := NewSettings()
	result, err := RunBatch(context.Background(), discardLogger(), cl, objects, dir, settings)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if result.Succeeded() != 2 {
		t.Fatalf("Succeeded() = %d, want 2", result.Succeeded())
	}
	if err := result.Err(); err != nil {
		t.Fatalf("BatchResult.Err() = %v, want nil", err)
	}

	for _, o := range objects {
		path := filepath.Join(dir, o.Name)
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading %s: %v", path, err)
		}
		if string(got) != string(cl.data[o.ID]) {
			t.Fatalf("content mismatch for %s", o.ID)
		}
	}
}

func TestRunBatchChecksumMismatchRecorded(t *testing.T) {
	dir := t.TempDir()
	cl := newStubClient()
	cl.data["obj-1"] = []byte("some bytes")
	cl.badChecksum["obj-1"] = true

	objects := []*Object{NewObject("drs://x/obj-1", "obj-1")}
	result, err := RunBatch(context.Background(), discardLogger(), cl, objects, dir, NewSettings())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if result.Succeeded() != 0 {
		t.Fatalf("Succeeded() = %d, want 0", result.Succeeded())
	}
	if err := result.Err(); err == nil {
		t.Fatal("expected aggregated error for checksum mismatch")
	}

	matches, err := filepath.Glob(filepath.Join(dir, "obj-1.bin*.part"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 {
		t.Fatal("expected part files to be retained after a checksum mismatch, found none")
	}
}

func TestRunBatchPartialResolveFailureContinues(t *testing.T) {
	dir := t.TempDir()
	cl := newStubClient()
	cl.data["obj-1"] = []byte("good object")
	cl.data["obj-2"] = []byte("never resolved")
	cl.failResolve["obj-2"] = true

	objects := []*Object{
		NewObject("drs://x/obj-1", "obj-1"),
		NewObject("drs://x/obj-2", "obj-2"),
	}
	result, err := RunBatch(context.Background(), discardLogger(), cl, objects, dir, NewSettings())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if result.Succeeded() != 1 {
		t.Fatalf("Succeeded() = %d, want 1", result.Succeeded())
	}
}

func TestRunBatchAllResolveFailed(t *testing.T) {
	dir := t.TempDir()
	cl := newStubClient()
	cl.failResolve["obj-1"] = true
	objects := []*Object{NewObject("drs://x/obj-1", "obj-1")}

	_, err := RunBatch(context.Background(), discardLogger(), cl, objects, dir, NewSettings())
	if err != ErrAllResolveFailed {
		t.Fatalf("RunBatch error = %v, want ErrAllResolveFailed", err)
	}
}

func TestRunBatchSignFailureRecorded(t *testing.T) {
	dir := t.TempDir()
	cl := newStubClient()
	cl.data["obj-1"] = []byte("payload")
	cl.failSign["obj-1"] = true
	objects := []*Object{NewObject("drs://x/obj-1", "obj-1")}

	result, err := RunBatch(context.Background(), discardLogger(), cl, objects, dir, NewSettings())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if result.Succeeded() != 0 {
		t.Fatalf("Succeeded() = %d, want 0", result.Succeeded())
	}
}

func TestRunBatchExpiredSignatureRetriedOnce(t *testing.T) {
	dir := t.TempDir()
	cl := newStubClient()
	cl.data["obj-1"] = []byte("content behind an expiring signature")
	cl.expireOnce["obj-1"] = false // present but not yet consumed

	objects := []*Object{NewObject("drs://x/obj-1", "obj-1")}
	result, err := RunBatch(context.Background(), discardLogger(), cl, objects, dir, NewSettings())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if result.Succeeded() != 1 {
		t.Fatalf("Succeeded() = %d, want 1 after one re-sign retry", result.Succeeded())
	}
}

func TestRunBatchSkipsExistingFile(t *testing.T) {
	dir := t.TempDir()
	cl := newStubClient()
	cl.data["obj-1"] = []byte("already here")
	if err := os.WriteFile(filepath.Join(dir, "obj-1.bin"), []byte("already here"), 0o644); err != nil {
		t.Fatal(err)
	}

	objects := []*Object{NewObject("drs://x/obj-1", "obj-1")}
	result, err := RunBatch(context.Background(), discardLogger(), cl, objects, dir, NewSettings())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if result.Succeeded() != 1 {
		t.Fatalf("Succeeded() = %d, want 1 (skip counts as success)", result.Succeeded())
	}
}

func TestRunBatchUnrecognizedChecksumAlgorithmRejectedBeforeDownload(t *testing.T) {
	dir := t.TempDir()
	cl := newStubClient()
	cl.data["obj-1"] = []byte("payload that must never be fetched")
	cl.badAlgorithm["obj-1"] = true

	objects := []*Object{NewObject("drs://x/obj-1", "obj-1")}
	result, err := RunBatch(context.Background(), discardLogger(), cl, objects, dir, NewSettings())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if result.Succeeded() != 0 {
		t.Fatalf("Succeeded() = %d, want 0", result.Succeeded())
	}
	if _, err := os.Stat(filepath.Join(dir, "obj-1.bin")); err == nil {
		t.Fatal("expected no output file: object should be rejected before any part fetch")
	}
}

func TestBatchResultErrNilWhenAllSucceed(t *testing.T) {
	r := BatchResult{Objects: []*Object{NewObject("drs://x/obj-1", "obj-1")}}
	if err := r.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
}
