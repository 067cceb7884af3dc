// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package manifest parses the tab-separated manifest files that list the
// drs:// URIs to download, grounded on
// original_source/drs_downloader/cli.py's _extract_tsv_info.
package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/anvilproject/drs-downloader/pkg/drsdl"
)

// Re-exported so callers can errors.Is against the canonical sentinels
// defined alongside the rest of the input-fatal error kinds (spec §7).
var (
	ErrNoURIColumn = drsdl.ErrNoURIColumn
	ErrBadScheme   = drsdl.ErrBadURIScheme
	ErrDuplicate   = drsdl.ErrDuplicateURI
)

// Read parses r as a TSV manifest and returns the ordered, deduplicated list
// of DRS URIs found in the URI column. column, if non-empty, names the exact
// header to use; otherwise the first header containing "uri"
// (case-insensitive) is used. Every row's URI value must start with
// "drs://" (case-insensitively); blank URI values are skipped. A duplicate
// URI anywhere in the file is a fatal error (spec §6, §3 invariant 3).
func Read(r io.Reader, column string) ([]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	headers, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("manifest: reading header row: %w", err)
	}

	idx, err := findURIColumn(headers, column)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var uris []string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("manifest: reading row: %w", err)
		}
		if idx >= len(row) {
			continue
		}
		uri := strings.TrimSpace(row[idx])
		if uri == "" {
			continue
		}
		if !hasDRSScheme(uri) {
			return nil, fmt.Errorf("manifest: %w: %q", ErrBadScheme, uri)
		}
		if seen[uri] {
			return nil, fmt.Errorf("manifest: %w: %q", ErrDuplicate, uri)
		}
		seen[uri] = true
		uris = append(uris, uri)
	}
	return uris, nil
}

// ReadFile opens path and delegates to Read.
func ReadFile(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	defer f.Close()
	return Read(f, column)
}

func findURIColumn(headers []string, column string) (int, error) {
	if column != "" {
		for i, h := range headers {
			if h == column {
				return i, nil
			}
		}
		return 0, fmt.Errorf("manifest: %w: %q not found in header row", ErrNoURIColumn, column)
	}
	for i, h := range headers {
		if strings.Contains(strings.ToLower(h), "uri") {
			return i, nil
		}
	}
	return 0, ErrNoURIColumn
}

func hasDRSScheme(uri string) bool {
	const scheme = "drs://"
	return len(uri) >= len(scheme) && strings.EqualFold(uri[:len(scheme)], scheme)
}
