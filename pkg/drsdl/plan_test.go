// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package drsdl

import "testing"

func TestPlanPartsCoverage(t *testing.T) {
	sizes := []int64{0, 1, mb - 1, mb, mb + 1, 5 * gb}
	const partSize = mb

	for _, size := range sizes {
		parts, err := PlanParts(size, partSize)
		if err != nil {
			t.Fatalf("PlanParts(%d, %d): %v", size, partSize, err)
		}
		if size == 0 {
			if len(parts) != 1 || parts[0].Start != 0 || parts[0].End != -1 {
				t.Fatalf("PlanParts(0, ...) = %+v, want single [0,-1] sentinel", parts)
			}
			continue
		}

		var covered int64
		for i, p := range parts {
			if p.Start > p.End {
				t.Fatalf("part %d has start > end: %+v", i, p)
			}
			if p.Start != covered {
				t.Fatalf("part %d starts at %d, want contiguous start %d", i, p.Start, covered)
			}
			covered = p.End + 1
			if p.Len() > partSize {
				t.Fatalf("part %d length %d exceeds partSize %d", i, p.Len(), partSize)
			}
		}
		if covered != size {
			t.Fatalf("PlanParts(%d, %d) covers up to %d, want %d", size, partSize, covered, size)
		}
	}
}

func TestPlanPartsNonOverlapping(t *testing.T) {
	parts, err := PlanParts(10*mb+7, mb)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(parts); i++ {
		if parts[i].Start != parts[i-1].End+1 {
			t.Fatalf("gap or overlap between part %d (%+v) and part %d (%+v)", i-1, parts[i-1], i, parts[i])
		}
	}
}

func TestPlanPartsLastPartTruncates(t *testing.T) {
	parts, err := PlanParts(mb+1, mb)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 2 {
		t.Fatalf("len(parts) = %d, want 2", len(parts))
	}
	last := parts[len(parts)-1]
	if last.End != mb {
		t.Fatalf("last part end = %d, want %d", last.End, mb)
	}
}

func TestPlanPartsRejectsInvalidInput(t *testing.T) {
	if _, err := PlanParts(-1, mb); err == nil {
		t.Fatal("expected error for negative size")
	}
	if _, err := PlanParts(mb, 0); err == nil {
		t.Fatal("expected error for non-positive partSize")
	}
}

func TestPartFileName(t *testing.T) {
	got := PartFileName("sample.cram", Part{Start: 0, End: 1048575})
	want := "sample.cram.0.1048575.part"
	if got != want {
		t.Fatalf("PartFileName = %q, want %q", got, want)
	}
}
