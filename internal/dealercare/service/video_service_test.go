package service

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestAssembleChunksOrderAndCount(t *testing.T) {
	var out bytes.Buffer
	srcs := []io.Reader{
		strings.NewReader("part-one|"),
		strings.NewReader("part-two|"),
		strings.NewReader("part-three"),
	}

	n, err := assembleChunks(&out, srcs)
	if err != nil {
		t.Fatalf("assembleChunks: %v", err)
	}
	want := "part-one|part-two|part-three"
	if out.String() != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
	if n != int64(len(want)) {
		t.Errorf("expected %d bytes, got %d", len(want), n)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, fmt.Errorf("chunk truncated") }

func TestAssembleChunksReportsFailingChunk(t *testing.T) {
	var out bytes.Buffer
	srcs := []io.Reader{
		strings.NewReader("ok"),
		failingReader{},
	}

	n, err := assembleChunks(&out, srcs)
	if err == nil || !strings.Contains(err.Error(), "chunk 1") {
		t.Fatalf("expected failure naming chunk 1, got %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 bytes written before failure, got %d", n)
	}
}
