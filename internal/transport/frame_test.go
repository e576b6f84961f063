package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

// scriptedChunkReader yields the given chunks one per call, then the final
// error. A nil chunk stands in for a poll timeout.
func scriptedChunkReader(chunks [][]byte, final error) readChunkFunc {
	i := 0
	return func(_ context.Context) ([]byte, error) {
		if i < len(chunks) {
			chunk := chunks[i]
			i++

			return chunk, nil
		}

		return nil, final
	}
}

func TestLineReaderCarriesPartialLineAcrossChunks(t *testing.T) {
	r := &LineReader{}
	r.Feed([]byte("a\nb\nc"))

	first, ok := r.Next()
	if !ok || string(first) != "a" {
		t.Fatalf("expected line a, got %q ok=%v", first, ok)
	}
	second, ok := r.Next()
	if !ok || string(second) != "b" {
		t.Fatalf("expected line b, got %q ok=%v", second, ok)
	}
	if line, ok := r.Next(); ok {
		t.Fatalf("expected partial line to be held back, got %q", line)
	}

	r.Feed([]byte("d\n"))
	third, ok := r.Next()
	if !ok || string(third) != "cd" {
		t.Fatalf("expected carried line cd, got %q ok=%v", third, ok)
	}
}

func TestLineReaderStripsCarriageReturnAndSkipsEmptyLines(t *testing.T) {
	r := &LineReader{}
	r.Feed([]byte("one\r\n\r\n\ntwo\r\n"))

	first, ok := r.Next()
	if !ok || string(first) != "one" {
		t.Fatalf("expected line one, got %q ok=%v", first, ok)
	}
	second, ok := r.Next()
	if !ok || string(second) != "two" {
		t.Fatalf("expected line two, got %q ok=%v", second, ok)
	}
	if line, ok := r.Next(); ok {
		t.Fatalf("expected no further lines, got %q", line)
	}
}

func TestReadLineAssemblesAcrossChunksAndTimeouts(t *testing.T) {
	r := &LineReader{}
	read := scriptedChunkReader([][]byte{
		[]byte(`{"type":"hea`),
		nil, // poll timeout between chunks
		[]byte("rtbeat\"}\n"),
	}, io.EOF)

	line, err := readLine(context.Background(), r, read)
	if err != nil {
		t.Fatalf("read line: %v", err)
	}
	if string(line) != `{"type":"heartbeat"}` {
		t.Fatalf("line mismatch: got %q", line)
	}
}

func TestReadLineReturnsEOFWhenStreamEnds(t *testing.T) {
	r := &LineReader{}
	read := scriptedChunkReader([][]byte{[]byte("partial without terminator")}, io.EOF)

	_, err := readLine(context.Background(), r, read)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF to be preserved, got %v", err)
	}
}

func TestReadLineStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &LineReader{}
	read := scriptedChunkReader(nil, io.EOF)

	_, err := readLine(ctx, r, read)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReadLineDropsOverlongLine(t *testing.T) {
	r := &LineReader{}
	huge := bytes.Repeat([]byte("x"), maxLineLen+1)
	read := scriptedChunkReader([][]byte{huge}, io.EOF)

	_, err := readLine(context.Background(), r, read)
	if err == nil {
		t.Fatalf("expected overlong line error, got nil")
	}
	if r.Buffered() != 0 {
		t.Fatalf("expected accumulator to be reset, still holds %d bytes", r.Buffered())
	}
}

func TestEncodeLineRejectsEmbeddedTerminator(t *testing.T) {
	_, err := encodeLine([]byte("{\"cmd\":\"get_status\"}\n"))
	if err == nil {
		t.Fatalf("expected embedded terminator error, got nil")
	}
}

func TestEncodeLineAndLineReaderRoundTrip(t *testing.T) {
	payload := []byte(`{"cmd":"get_status"}`)
	frame, err := encodeLine(payload)
	if err != nil {
		t.Fatalf("encode line: %v", err)
	}

	r := &LineReader{}
	r.Feed(frame)
	got, ok := r.Next()
	if !ok {
		t.Fatalf("expected a complete line")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %q want %q", string(got), string(payload))
	}
}
