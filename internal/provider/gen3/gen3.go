// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package gen3 implements drsdl.Client against a Gen3/Fence DRS deployment,
// grounded on original_source/drs_downloader/clients/gen3.py: a Fence
// API-key JSON file is exchanged for a bearer access token, objects are
// resolved through indexd's GA4GH DRS endpoint, and access URLs are minted
// through Fence's download endpoint.
package gen3

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/anvilproject/drs-downloader/pkg/drsdl"
)

// Client talks to one Gen3/Fence endpoint. Zero value is invalid; use New.
type Client struct {
	Endpoint  string
	APIKeyPath string
	HTTP      *http.Client
	Stats     *drsdl.Statistics

	mu        sync.Mutex
	apiKey    json.RawMessage
	token     string
	authorized bool
}

// New returns a Gen3 client for endpoint, authenticating lazily from the
// Fence API-key JSON file at apiKeyPath on first use.
func New(endpoint, apiKeyPath string, stats *drsdl.Statistics) *Client {
	return &Client{
		Endpoint:   strings.TrimRight(endpoint, "/"),
		APIKeyPath: apiKeyPath,
		HTTP:       &http.Client{},
		Stats:      stats,
	}
}

// Resolve fetches object metadata from indexd's GA4GH DRS endpoint.
func (c *Client) Resolve(ctx context.Context, obj *drsdl.Object) error {
	if err := c.ensureAuthorized(ctx); err != nil {
		return err
	}

	id := lastSegment(obj.ID)
	url := fmt.Sprintf("%s/ga4gh/drs/v1/objects/%s", c.Endpoint, id)
	body, status, err := c.doAuthorized(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if err := c.refreshToken(ctx); err != nil {
			return err
		}
		body, status, err = c.doAuthorized(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
	}
	if status != http.StatusOK {
		return classify(status, body)
	}

	var resp struct {
		Name      string `json:"name"`
		Size      int64  `json:"size"`
		Checksums []struct {
			Type     string `json:"type"`
			Checksum string `json:"checksum"`
		} `json:"checksums"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("gen3: resolve: decoding response: %w", err)
	}
	if len(resp.Checksums) == 0 {
		return fmt.Errorf("gen3: resolve: no checksums in response")
	}
	obj.Name = resp.Name
	obj.Size = resp.Size
	obj.Checksum = drsdl.Checksum{Algorithm: resp.Checksums[0].Type, Hex: resp.Checksums[0].Checksum}
	obj.AccessType = "s3"
	return nil
}

// Sign calls Fence's user/data/download endpoint to mint an access URL.
// userProject is accepted for interface symmetry with Terra but unused:
// Gen3/Fence has no requester-pays billing-project concept in this flow.
func (c *Client) Sign(ctx context.Context, obj *drsdl.Object, userProject string) error {
	id := lastSegment(obj.ID)
	url := fmt.Sprintf("%s/user/data/download/%s", c.Endpoint, id)
	body, status, err := c.doAuthorized(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if err := c.refreshToken(ctx); err != nil {
			return err
		}
		body, status, err = c.doAuthorized(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
	}
	if status != http.StatusOK {
		return classify(status, body)
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("gen3: sign: decoding response: %w", err)
	}
	obj.AccessURL = resp.URL
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
		return drsdl.NewProviderError(drsdl.ClassifyHTTPError(resp.StatusCode, string(body)), fmt.Errorf("gen3: download_part: %s: %s", resp.Status, body))
	}

	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()
	c.Stats.FileOpened()
	defer c.Stats.FileClosed()

	_, err = io.Copy(f, resp.Body)
	return err
}

func (c *Client) ensureAuthorized(ctx context.Context) error {
	c.mu.Lock()
	authorized := c.authorized
	c.mu.Unlock()
	if authorized {
		return nil
	}
	return c.refreshToken(ctx)
}

// refreshToken exchanges the Fence API key for a fresh bearer token. Safe
// under concurrent callers: the mutex serializes the whole exchange (spec §5
// "Auth token on the provider client").
func (c *Client) refreshToken(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.apiKey == nil {
		raw, err := os.ReadFile(expandHome(c.APIKeyPath))
		if err != nil {
			return fmt.Errorf("gen3: reading api key file: %w", err)
		}
		c.apiKey = raw
	}

	url := fmt.Sprintf("%s/user/credentials/cdis/access_token", c.Endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(c.apiKey)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.authorized = false
		return drsdl.NewProviderError(drsdl.RecoverableTransient, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.authorized = false
		return fmt.Errorf("gen3: access token exchange failed: %s: %s", resp.Status, body)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return fmt.Errorf("gen3: decoding access token response: %w", err)
	}
	c.token = tok.AccessToken
	c.authorized = true
	return nil
}

func (c *Client) doAuthorized(ctx context.Context, method, url string, body io.Reader) ([]byte, int, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, drsdl.NewProviderError(drsdl.RecoverableTransient, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}

func classify(status int, body []byte) error {
	kind := drsdl.ClassifyHTTPError(status, string(body))
	return drsdl.NewProviderError(kind, fmt.Errorf("gen3: unexpected status %d: %s", status, body))
}

func lastSegment(id string) string {
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + strings.TrimPrefix(path, "~")
}
