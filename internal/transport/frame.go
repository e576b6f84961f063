package transport

import (
	"bytes"
	"context"
	"fmt"
)

// maxLineLen bounds the accumulator so a peer that never sends a line
// terminator cannot grow memory without limit.
const maxLineLen = 64 * 1024

// readChunkFunc returns the next batch of raw bytes from the wire. A nil
// chunk with nil error means the poll interval elapsed without data.
type readChunkFunc func(ctx context.Context) ([]byte, error)

// LineReader accumulates raw chunks and yields complete lines. Partial
// trailing data is carried until its terminator arrives. Carriage returns
// before the terminator are stripped, empty lines are skipped.
type LineReader struct {
	buf []byte
}

func (r *LineReader) Feed(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	r.buf = append(r.buf, chunk...)
}

func (r *LineReader) Next() ([]byte, bool) {
	for {
		i := bytes.IndexByte(r.buf, '\n')
		if i < 0 {
			return nil, false
		}
		line := bytes.TrimRight(r.buf[:i], "\r")
		r.buf = r.buf[i+1:]
		if len(line) == 0 {
			continue
		}

		out := make([]byte, len(line))
		copy(out, line)

		return out, true
	}
}

func (r *LineReader) Buffered() int {
	return len(r.buf)
}

func (r *LineReader) Reset() {
	r.buf = nil
}

func readLine(ctx context.Context, r *LineReader, readChunk readChunkFunc) ([]byte, error) {
	for {
		if line, ok := r.Next(); ok {
			return line, nil
		}
		if r.Buffered() > maxLineLen {
			n := r.Buffered()
			r.Reset()

			return nil, fmt.Errorf("line exceeds %d bytes, dropped %d buffered bytes", maxLineLen, n)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk, err := readChunk(ctx)
		if err != nil {
			return nil, err
		}
		r.Feed(chunk)
	}
}

func encodeLine(payload []byte) ([]byte, error) {
	if bytes.IndexByte(payload, '\n') >= 0 {
		return nil, fmt.Errorf("payload contains a line terminator")
	}

	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, payload...)
	frame = append(frame, '\n')

	return frame, nil
}
