// Package relay forwards newline-delimited JSON events from TCP producers
// to live viewers.
package relay

import "bytes"

// DefaultMaxLineBytes bounds a single event line
const DefaultMaxLineBytes = 1 << 20

// LineDecoder splits a byte stream into lines across arbitrary chunk boundaries.
// It is not safe for concurrent use; each connection owns one.
type LineDecoder struct {
	buf        []byte
	maxLine    int
	discarding bool
}

// NewLineDecoder creates a decoder. maxLine <= 0 uses DefaultMaxLineBytes.
func NewLineDecoder(maxLine int) *LineDecoder {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	return &LineDecoder{maxLine: maxLine}
}

// Feed consumes a chunk and returns the lines it completed, in order.
// Blank lines are skipped and a trailing \r is trimmed. The incomplete tail
// stays buffered for the next call. dropped counts lines that exceeded the
// maximum length and were discarded.
func (d *LineDecoder) Feed(chunk []byte) (lines [][]byte, dropped int) {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			d.append(chunk)
			break
		}

		d.append(chunk[:i])
		chunk = chunk[i+1:]

		if d.discarding {
			d.discarding = false
			dropped++
			continue
		}

		line := bytes.TrimSuffix(d.buf, []byte{'\r'})
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, bytes.Clone(line))
		}
		d.buf = d.buf[:0]
	}
	return lines, dropped
}

// Pending returns the number of buffered bytes of the incomplete line
func (d *LineDecoder) Pending() int {
	return len(d.buf)
}

func (d *LineDecoder) append(p []byte) {
	if d.discarding {
		return
	}
	if len(d.buf)+len(p) > d.maxLine {
		d.discarding = true
		d.buf = d.buf[:0]
		return
	}
	d.buf = append(d.buf, p...)
}
