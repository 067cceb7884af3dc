// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"errors"
	"strings"
	"testing"
)

func TestReadFindsDefaultURIColumn(t *testing.T) {
	tsv := "name\tdrs_uri\tsize\n" +
		"a.bam\tdrs://dg.4503:abc123\t100\n" +
		"b.bam\tdrs://dg.4503:def456\t200\n"

	uris, err := Read(strings.NewReader(tsv), "")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []string{"drs://dg.4503:abc123", "drs://dg.4503:def456"}
	if len(uris) != len(want) {
		t.Fatalf("got %v, want %v", uris, want)
	}
	for i := range want {
		if uris[i] != want[i] {
			t.Fatalf("uris[%d] = %q, want %q", i, uris[i], want[i])
		}
	}
}

func TestReadExplicitColumn(t *testing.T) {
	tsv := "id\tpointer\n1\tdrs://dg.4503:abc123\n"
	uris, err := Read(strings.NewReader(tsv), "pointer")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(uris) != 1 || uris[0] != "drs://dg.4503:abc123" {
		t.Fatalf("uris = %v", uris)
	}
}

func TestReadSkipsBlankValues(t *testing.T) {
	tsv := "drs_uri\n\ndrs://dg.4503:abc123\n"
	uris, err := Read(strings.NewReader(tsv), "")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(uris) != 1 {
		t.Fatalf("uris = %v, want one entry", uris)
	}
}

func TestReadNoURIColumn(t *testing.T) {
	tsv := "name\tsize\na.bam\t100\n"
	_, err := Read(strings.NewReader(tsv), "")
	if !errors.Is(err, ErrNoURIColumn) {
		t.Fatalf("err = %v, want ErrNoURIColumn", err)
	}
}

func TestReadExplicitColumnMissing(t *testing.T) {
	tsv := "name\tsize\na.bam\t100\n"
	_, err := Read(strings.NewReader(tsv), "drs_uri")
	if !errors.Is(err, ErrNoURIColumn) {
		t.Fatalf("err = %v, want ErrNoURIColumn", err)
	}
}

func TestReadBadScheme(t *testing.T) {
	tsv := "drs_uri\nhttps://example.com/file\n"
	_, err := Read(strings.NewReader(tsv), "")
	if !errors.Is(err, ErrBadScheme) {
		t.Fatalf("err = %v, want ErrBadScheme", err)
	}
}

func TestReadDuplicateURI(t *testing.T) {
	tsv := "drs_uri\ndrs://dg.4503:abc123\ndrs://dg.4503:abc123\n"
	_, err := Read(strings.NewReader(tsv), "")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestReadCaseInsensitiveScheme(t *testing.T) {
	tsv := "drs_uri\nDRS://dg.4503:abc123\n"
	uris, err := Read(strings.NewReader(tsv), "")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(uris) != 1 {
		t.Fatalf("uris = %v", uris)
	}
}
