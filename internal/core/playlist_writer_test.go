package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

func trackIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%d", i+1)
	}
	return ids
}

func TestWrite_BatchesInOrder(t *testing.T) {
	source := &mockTrackSource{}
	ids := trackIDs(250)

	result, err := NewPlaylistWriter(zap.NewNop()).Write(context.Background(), "pl1", ids, source)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	wantSequence := []string{"replace", "append", "append", "append"}
	if !reflect.DeepEqual(source.callSequence, wantSequence) {
		t.Errorf("Call sequence = %v, want %v", source.callSequence, wantSequence)
	}
	if len(source.replaceCalls[0]) != 0 {
		t.Errorf("Clear should replace with an empty list, got %d ids", len(source.replaceCalls[0]))
	}

	sizes := make([]int, 0, len(source.appendCalls))
	var flattened []string
	for _, batch := range source.appendCalls {
		sizes = append(sizes, len(batch))
		flattened = append(flattened, batch...)
	}
	if !reflect.DeepEqual(sizes, []int{100, 100, 50}) {
		t.Errorf("Batch sizes = %v, want [100 100 50]", sizes)
	}
	if !reflect.DeepEqual(flattened, ids) {
		t.Error("Appended ids should preserve the input order")
	}

	if result.Batches != 3 || result.Added != 250 {
		t.Errorf("Result = %+v, want 3 batches and 250 added", result)
	}
}

func TestWrite_EmptyListOnlyClears(t *testing.T) {
	source := &mockTrackSource{}

	result, err := NewPlaylistWriter(zap.NewNop()).Write(context.Background(), "pl1", nil, source)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(source.replaceCalls) != 1 || len(source.appendCalls) != 0 {
		t.Errorf("Expected 1 clear and 0 appends, got %d and %d", len(source.replaceCalls), len(source.appendCalls))
	}
	if result.Batches != 0 {
		t.Errorf("Expected 0 batches, got %d", result.Batches)
	}
}

func TestWrite_ClearFailureAborts(t *testing.T) {
	source := &mockTrackSource{replaceErr: errors.New("403 forbidden")}

	_, err := NewPlaylistWriter(zap.NewNop()).Write(context.Background(), "pl1", trackIDs(10), source)

	if !errors.Is(err, ErrClearFailed) {
		t.Fatalf("Expected ErrClearFailed, got %v", err)
	}
	if errors.Is(err, ErrPartialAdd) {
		t.Error("Clear failure must not be reported as a partial add")
	}
	if len(source.appendCalls) != 0 {
		t.Errorf("Expected zero append calls after clear failure, got %d", len(source.appendCalls))
	}
}

func TestWrite_PartialAdd(t *testing.T) {
	source := &mockTrackSource{appendErrAt: 2}

	result, err := NewPlaylistWriter(zap.NewNop()).Write(context.Background(), "pl1", trackIDs(150), source)

	var partial *PartialAddError
	if !errors.As(err, &partial) {
		t.Fatalf("Expected PartialAddError, got %v", err)
	}
	if !errors.Is(err, ErrPartialAdd) {
		t.Error("Expected error to match ErrPartialAdd")
	}
	if partial.Batch != 2 || partial.Added != 100 || partial.Total != 150 {
		t.Errorf("PartialAddError = %+v, want batch 2, 100 added of 150", partial)
	}
	if result.Added != 100 || result.Batches != 1 {
		t.Errorf("Result = %+v, want 1 batch and 100 added", result)
	}

	if len(source.replaceCalls) != 1 {
		t.Errorf("Expected exactly one clear, got %d", len(source.replaceCalls))
	}
	if len(source.appendCalls) != 2 || len(source.appendCalls[1]) != 50 {
		t.Errorf("Expected a failed second append of 50 ids, got %d calls", len(source.appendCalls))
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{"empty", 0, 100, nil},
		{"exact", 200, 100, []int{100, 100}},
		{"remainder", 250, 100, []int{100, 100, 50}},
		{"single", 1, 100, []int{1}},
		{"invalid size", 10, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sizes []int
			for _, chunk := range Chunk(trackIDs(tt.n), tt.size) {
				sizes = append(sizes, len(chunk))
			}
			if !reflect.DeepEqual(sizes, tt.sizes) {
				t.Errorf("Chunk() sizes = %v, want %v", sizes, tt.sizes)
			}
		})
	}
}

func TestChunk_AppendDoesNotClobber(t *testing.T) {
	ids := trackIDs(5)
	chunks := Chunk(ids, 2)

	_ = append(chunks[0], "extra")
	if ids[2] != "t3" {
		t.Errorf("Appending to a chunk overwrote the source slice: %v", ids)
	}
}
