package idset

import (
	"fmt"
	"reflect"
	"testing"
)

func TestSet_Basic(t *testing.T) {
	set := New(100)

	if set.Has("track1") {
		t.Error("Empty set should not have any ids")
	}

	if set.Len() != 0 {
		t.Errorf("Empty set size should be 0, got %d", set.Len())
	}

	if !set.Add("track1") {
		t.Error("Add should report a new id")
	}
	if !set.Has("track1") {
		t.Error("Set should have track1 after adding")
	}

	if set.Add("track1") {
		t.Error("Add should not report a duplicate as new")
	}
	if set.Len() != 1 {
		t.Errorf("Set size should still be 1 after adding duplicate, got %d", set.Len())
	}

	set.Add("track2")
	set.Add("track3")

	if set.Len() != 3 {
		t.Errorf("Set size should be 3 after adding three ids, got %d", set.Len())
	}
}

func TestSet_IgnoresEmptyIDs(t *testing.T) {
	set := From("track1", "", "track2", "", "track3")

	if set.Len() != 3 {
		t.Errorf("Set size should be 3 (ignoring empty strings), got %d", set.Len())
	}
	if set.Has("") {
		t.Error("Set should never contain the empty id")
	}
}

func TestSet_SliceKeepsInsertionOrder(t *testing.T) {
	set := From("c", "a", "b", "a", "c")

	got := set.Slice()
	want := []string{"c", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Slice() = %v, want %v", got, want)
	}

	got[0] = "mutated"
	if set.Slice()[0] != "c" {
		t.Error("Slice() should return a copy")
	}
}

func TestSet_NilIsEmpty(t *testing.T) {
	var set *Set

	if set.Has("track1") {
		t.Error("nil set should not have ids")
	}
	if set.Len() != 0 {
		t.Errorf("nil set size should be 0, got %d", set.Len())
	}
	if set.Slice() != nil {
		t.Error("nil set should return a nil slice")
	}
}

func TestSet_ExactBeyondCapacity(t *testing.T) {
	set := New(10)

	numIDs := 5000
	for i := 0; i < numIDs; i++ {
		set.Add(fmt.Sprintf("track_%d", i))
	}

	for i := 0; i < numIDs; i++ {
		if !set.Has(fmt.Sprintf("track_%d", i)) {
			t.Fatalf("Set should have track_%d", i)
		}
	}

	// The map is authoritative, so an overfilled filter still yields no false positives
	for i := 0; i < 1000; i++ {
		if set.Has(fmt.Sprintf("nonexistent_%d", i)) {
			t.Fatalf("Set reported a false positive for nonexistent_%d", i)
		}
	}
}

func BenchmarkSet_Add(b *testing.B) {
	set := New(10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		set.Add(fmt.Sprintf("track_%d", i))
	}
}

func BenchmarkSet_Has(b *testing.B) {
	set := New(10000)
	for i := 0; i < 1000; i++ {
		set.Add(fmt.Sprintf("track_%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		set.Has(fmt.Sprintf("track_%d", i%2000))
	}
}
