// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package terra

import (
	"context"
	"testing"

	"github.com/anvilproject/drs-downloader/pkg/drsdl"
)

func TestSignRequiresUserProjectForAnVILRequesterPays(t *testing.T) {
	c := New(&drsdl.Statistics{})
	obj := drsdl.NewObject("drs://dg.anv0:abc123", "dg.anv0:abc123")

	err := c.Sign(context.Background(), obj, "")
	if err == nil {
		t.Fatal("expected an error when signing an AnVIL requester-pays object with no --user-project")
	}
}

func TestSignSucceedsForAnVILRequesterPaysWithUserProject(t *testing.T) {
	c := New(&drsdl.Statistics{})
	obj := drsdl.NewObject("drs://dg.anv0:abc123", "dg.anv0:abc123")
	// Resolve already populated AccessURL in the real flow; set it directly
	// here so Sign's short-circuit is exercised without a live Martha call.
	obj.AccessURL = "https://example.invalid/already-signed"

	if err := c.Sign(context.Background(), obj, "my-billing-project"); err != nil {
		t.Fatalf("Sign() = %v, want nil", err)
	}
}

func TestSignSkipsRequesterPaysCheckForNonAnVILObject(t *testing.T) {
	c := New(&drsdl.Statistics{})
	obj := drsdl.NewObject("drs://dg.4503:abc123", "dg.4503:abc123")
	obj.AccessURL = "https://example.invalid/already-signed"

	if err := c.Sign(context.Background(), obj, ""); err != nil {
		t.Fatalf("Sign() = %v, want nil for a non-AnVIL object with no --user-project", err)
	}
}
