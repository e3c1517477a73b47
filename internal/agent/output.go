package agent

import (
	"bytes"
	"sync"
)

// maxLineBytes bounds a single stdout record. Longer lines are dropped.
const maxLineBytes = 10 * 1024 * 1024

// lineWriter splits a byte stream into lines and hands each one to onLine in
// order. A line longer than max is discarded up to its terminating newline.
type lineWriter struct {
	onLine   func([]byte)
	onDrop   func()
	max      int
	buf      []byte
	skipping bool
}

func newLineWriter(max int, onLine func([]byte), onDrop func()) *lineWriter {
	return &lineWriter{onLine: onLine, onDrop: onDrop, max: max}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			if !w.skipping {
				w.buf = append(w.buf, p...)
				if len(w.buf) > w.max {
					w.buf = w.buf[:0]
					w.skipping = true
					if w.onDrop != nil {
						w.onDrop()
					}
				}
			}
			break
		}

		if w.skipping {
			w.skipping = false
		} else {
			w.buf = append(w.buf, p[:i]...)
			if len(w.buf) > w.max {
				if w.onDrop != nil {
					w.onDrop()
				}
			} else {
				w.onLine(w.buf)
			}
		}
		w.buf = w.buf[:0]
		p = p[i+1:]
	}
	return n, nil
}

// Flush emits a trailing line that was not newline terminated.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 && !w.skipping {
		w.onLine(w.buf)
	}
	w.buf = w.buf[:0]
	w.skipping = false
}

// cappedBuffer keeps the first max bytes written to it and silently drops
// the rest. It is used for stderr, which only matters for error reporting.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := b.max - b.buf.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	if b.truncated {
		s += "\n[stderr truncated]"
	}
	return s
}
