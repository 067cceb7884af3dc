// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package terra implements drsdl.Client against Terra's Martha v3 DRS
// resolver, grounded on original_source/drs_downloader/clients/terra.py: a
// single POST both resolves and signs, authenticated with a bearer token
// obtained from `gcloud auth print-access-token`, and AnVIL-prefixed ids
// enforce the requester-pays billing-project rule from
// tests/integration/test_payers.py.
package terra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/anvilproject/drs-downloader/pkg/drsdl"
)

// DefaultEndpoint is Terra's production Martha v3 Cloud Function, matching
// the original client's hardcoded endpoint exactly.
const DefaultEndpoint = "https://us-central1-broad-dsde-prod.cloudfunctions.net/martha_v3"

// Client talks to Martha. Resolve and Sign both hit the same endpoint
// (Martha returns size, name, checksum, and the access URL in one call);
// Sign is effectively a cache read of what Resolve already fetched, unless
// Resolve never ran.
type Client struct {
	Endpoint string
	HTTP     *http.Client
	Stats    *drsdl.Statistics

	mu    sync.Mutex
	token string
}

// New returns a Terra client. The bearer token is obtained lazily on first
// use by shelling out to `gcloud auth print-access-token`, matching the
// original exactly (spec §9 "shared helpers are ordinary functions").
func New(stats *drsdl.Statistics) *Client {
	return &Client{Endpoint: DefaultEndpoint, HTTP: &http.Client{}, Stats: stats}
}

type marthaResponse struct {
	FileName  string `json:"fileName"`
	Size      int64  `json:"size"`
	Hashes    map[string]string `json:"hashes"`
	AccessURL *struct {
		URL string `json:"url"`
	} `json:"accessUrl"`
}

// Resolve posts to Martha and populates size/name/checksum. It also caches
// the access URL Martha returns in the same call, so Sign is usually a
// no-op HTTP-wise for Terra.
// Resolve deliberately does not check IsAnVILRequesterPays: Martha resolves
// AnVIL object metadata without a billing project, and userProject isn't
// available at this stage anyway. The requester-pays rule is enforced in
// Sign (spec §4.1, §8 S7/S8).
func (c *Client) Resolve(ctx context.Context, obj *drsdl.Object) error {
	resp, err := c.callMartha(ctx, obj.SelfURI, []string{"fileName", "size", "hashes", "accessUrl"})
	if err != nil {
		return err
	}

	algo, digest := pickHash(resp.Hashes)
	if algo == "" {
		return fmt.Errorf("terra: resolve: no recognized hash in response for %s", obj.SelfURI)
	}

	obj.Name = resp.FileName
	obj.Size = resp.Size
	obj.Checksum = drsdl.Checksum{Algorithm: algo, Hex: digest}
	obj.AccessType = "gs"
	if resp.AccessURL != nil {
		obj.AccessURL = resp.AccessURL.URL
	}
	return nil
}

// Sign enforces the requester-pays rule and re-fetches the access URL if
// Resolve didn't already get one (spec §4.1 Sign, §8 S7/S8).
func (c *Client) Sign(ctx context.Context, obj *drsdl.Object, userProject string) error {
	if drsdl.IsAnVILRequesterPays(obj.ID) && userProject == "" {
		return fmt.Errorf("%s: requester-pays dataset requires --user-project, none supplied", obj.SelfURI)
	}
	if obj.AccessURL != "" {
		return nil
	}

	resp, err := c.callMartha(ctx, obj.SelfURI, []string{"accessUrl", "size"})
	if err != nil {
		return err
	}
	if resp.AccessURL == nil {
		return fmt.Errorf("terra: sign: no accessUrl returned for %s", obj.SelfURI)
	}
	obj.AccessURL = resp.AccessURL.URL
	return nil
}

// DownloadPart issues a ranged GET against obj.AccessURL.
func (c *Client) DownloadPart(ctx context.Context, obj *drsdl.Object, part drsdl.Part, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, obj.AccessURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", part.Start, part.End))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return drsdl.NewProviderError(drsdl.RecoverableTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return drsdl.NewProviderError(drsdl.ClassifyHTTPError(resp.StatusCode, string(body)), fmt.Errorf("terra: download_part: %s: %s", resp.Status, body))
	}

	return streamToFile(destPath, resp.Body, c.Stats)
}

func (c *Client) callMartha(ctx context.Context, uri string, fields []string) (*marthaResponse, error) {
	token, err := c.authToken(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{"url": uri, "fields": fields})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, drsdl.NewProviderError(drsdl.RecoverableTransient, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, drsdl.NewProviderError(drsdl.ClassifyHTTPError(resp.StatusCode, string(body)), fmt.Errorf("terra: martha: %s: %s", resp.Status, body))
	}

	var mr marthaResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("terra: decoding martha response: %w", err)
	}
	return &mr, nil
}

// authToken returns the cached gcloud bearer token, fetching it on first use.
// The token is kept for the life of the Client: it is not refreshed, even
// when Martha rejects it.
func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	out, err := exec.CommandContext(ctx, "gcloud", "auth", "print-access-token").Output()
	if err != nil {
		return "", fmt.Errorf("terra: gcloud auth print-access-token: %w", err)
	}
	c.token = strings.TrimSpace(string(out))
	if c.token == "" {
		return "", fmt.Errorf("terra: no token retrieved from gcloud")
	}
	return c.token, nil
}

// pickHash returns the first recognized digest algorithm present in a
// Martha hashes map, preferring md5 to match the original client's
// hardcoded choice when it's available.
func pickHash(hashes map[string]string) (algo, digest string) {
	for _, name := range []string{"md5", "sha256", "sha1", "sha512"} {
		if v, ok := hashes[name]; ok && v != "" {
			return name, v
		}
	}
	return "", ""
}

func streamToFile(destPath string, r io.Reader, stats *drsdl.Statistics) error {
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()
	stats.FileOpened()
	defer stats.FileClosed()

	_, err = io.Copy(f, r)
	return err
}
