package web

import (
	"io/fs"
	"testing"
)

func TestDistContainsEntryDocument(t *testing.T) {
	dist, err := Dist()
	if err != nil {
		t.Fatalf("Dist: %v", err)
	}
	info, err := fs.Stat(dist, "index.html")
	if err != nil {
		t.Fatalf("index.html missing from embedded build: %v", err)
	}
	if info.IsDir() || info.Size() == 0 {
		t.Fatalf("index.html must be a non-empty file")
	}
}
