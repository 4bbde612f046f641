package utils

import (
	"fmt"
	"testing"
)

func TestChunkStrings(t *testing.T) {
	ids := make([]string, 0, 2500)
	for i := 0; i < 2500; i++ {
		ids = append(ids, fmt.Sprint(i))
	}

	chunks := ChunkStrings(ids, 1000)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 1000 || len(chunks[1]) != 1000 || len(chunks[2]) != 500 {
		t.Fatalf("unexpected chunk sizes: %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if chunks[0][0] != "0" || chunks[2][499] != "2499" {
		t.Fatal("order not preserved across chunks")
	}

	if ChunkStrings(nil, 1000) != nil {
		t.Fatal("empty input should yield nil")
	}
	if ChunkStrings(ids, 0) != nil {
		t.Fatal("non-positive size should yield nil")
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := SplitAndTrim(" a, b ,, c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected result: %v", got)
	}
	if SplitAndTrim("  ") != nil {
		t.Fatal("blank input should yield nil")
	}
}
