package multicall

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	got, err := splitRange(5, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []indexRange{
		{From: 0, To: 1},
		{From: 2, To: 3},
		{From: 4, To: 4},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := splitRange(3, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []indexRange{{From: 0, To: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeEmpty(t *testing.T) {
	got, err := splitRange(0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no ranges, got %+v", got)
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := splitRange(10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
	if _, err := splitRange(-1, 5); err == nil {
		t.Fatalf("expected error for negative count")
	}
}
