// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package mock implements drsdl.Client entirely in-process, with no
// network traffic, grounded on
// original_source/drs_downloader/clients/mock.py. It is used for local dry
// runs and the package's own test suite.
package mock

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/anvilproject/drs-downloader/pkg/drsdl"
)

// Sentinel DRS ids that reproduce the Python mock's injected failures:
// BadID and BadChecksum/IncorrectSize mirror mock.py's own sentinels,
// BadSignature reproduces sign_url returning nil, and ExpiringSignature
// adds the mid-download signature-expiry scenario (spec §8 S6) the
// original represents only at the Sign step — here the first generation of
// the access URL is honored by Sign but rejected by DownloadPart, forcing
// exactly one re-sign-and-retry cycle in the batch orchestrator.
const (
	BadID             = "mock-bad-id"
	BadChecksum       = "mock-bad-checksum"
	IncorrectSize     = "mock-incorrect-size"
	BadSignature      = "mock-bad-signature"
	ExpiringSignature = "mock-expiring-signature"
	maxObjectBytes    = 50 * 1 << 20
)

const loremLine = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.\n"

// Client is the mock drsdl.Client. GoldenDir is where the synthetic
// "<name>.golden" reference files are written and later read back from
// during DownloadPart, exactly as the Python mock does with the process's
// working directory.
type Client struct {
	GoldenDir string
	Stats     *drsdl.Statistics

	mu          sync.Mutex
	signedOnce  map[string]bool // tracks whether ExpiringSignature's first-generation URL has been consumed
}

// New returns a mock client writing golden fixtures under goldenDir.
func New(goldenDir string, stats *drsdl.Statistics) *Client {
	return &Client{GoldenDir: goldenDir, Stats: stats, signedOnce: make(map[string]bool)}
}

// Resolve synthesizes a random-length object, writes its bytes to a
// "<name>.golden" fixture file, and populates obj's metadata, injecting
// the sentinel failures named by the well-known ids (spec §4.1 Resolve).
func (c *Client) Resolve(ctx context.Context, obj *drsdl.Object) error {
	if err := sleepRandom(ctx); err != nil {
		return err
	}

	name := fmt.Sprintf("file-%s.txt", randomHex(8))
	n := rand.Intn(maxObjectBytes-len(loremLine)) + len(loremLine)
	repeats := n / len(loremLine)
	if repeats < 1 {
		repeats = 1
	}
	data := make([]byte, 0, repeats*len(loremLine))
	for i := 0; i < repeats; i++ {
		data = append(data, loremLine...)
	}

	if err := os.MkdirAll(c.GoldenDir, 0o755); err != nil {
		return err
	}
	goldenPath := filepath.Join(c.GoldenDir, name+".golden")
	if err := os.WriteFile(goldenPath, data, 0o644); err != nil {
		return err
	}
	c.Stats.FileOpened()
	c.Stats.FileClosed()

	sum := md5.Sum(data)
	checksum := hex.EncodeToString(sum[:])
	if obj.ID == BadChecksum {
		badSum := md5.Sum([]byte(loremLine))
		checksum = hex.EncodeToString(badSum[:])
	}

	size := int64(len(data))
	if obj.ID == IncorrectSize {
		size += 1000
	}

	obj.Name = name
	obj.Size = size
	obj.Checksum = drsdl.Checksum{Algorithm: "md5", Hex: checksum}
	obj.AccessType = "none"

	if obj.ID == BadID {
		return fmt.Errorf("mock: resolve failed for %s", BadID)
	}
	return nil
}

// Sign simulates signing by waiting briefly and stamping a fake signed URL.
// BadSignature reproduces the Python mock's dedicated failure id.
func (c *Client) Sign(ctx context.Context, obj *drsdl.Object, userProject string) error {
	if obj.ID == BadSignature {
		return fmt.Errorf("mock: simulated signature failure")
	}
	if err := sleepRandom(ctx); err != nil {
		return err
	}
	sig := randomHex(16)
	if obj.ID == ExpiringSignature {
		c.mu.Lock()
		firstGeneration := !c.signedOnce[obj.ID]
		c.signedOnce[obj.ID] = true
		c.mu.Unlock()
		if firstGeneration {
			sig = "expired-" + sig
		}
	}
	obj.AccessURL = fmt.Sprintf("%s?X-Signature=%s", obj.SelfURI, sig)
	obj.AccessType = "none"
	return nil
}

// DownloadPart reads the requested byte range directly out of the golden
// fixture file written during Resolve, matching the Python mock's behavior
// of never performing real HTTP either.
func (c *Client) DownloadPart(ctx context.Context, obj *drsdl.Object, part drsdl.Part, destPath string) error {
	if err := sleepRandom(ctx); err != nil {
		return err
	}

	if strings.Contains(obj.AccessURL, "X-Signature=expired-") {
		return drsdl.NewProviderError(drsdl.RecoverableSignatureExpired, fmt.Errorf("mock: token has expired"))
	}

	goldenPath := filepath.Join(c.GoldenDir, obj.Name+".golden")
	f, err := os.Open(goldenPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(part.Start, io.SeekStart); err != nil {
		return err
	}
	length := part.Len()
	if length < 0 {
		length = 0
	}
	buf := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(f, buf); err != nil {
			return err
		}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()
	c.Stats.FileOpened()
	defer c.Stats.FileClosed()

	_, err = out.Write(buf)
	return err
}

func sleepRandom(ctx context.Context) error {
	d := time.Duration(rand.Intn(3)+1) * time.Millisecond * 10
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func randomHex(n int) string {
	b := make([]byte, n/2+1)
	rand.Read(b)
	return hex.EncodeToString(b)[:n]
}
