package runner

import (
	"bytes"
	"sync"

	"github.com/sirupsen/logrus"
)

const maxLineBytes = 256 * 1024

// lineWriter is an io.Writer that logs each complete line it receives.
// Lines longer than maxLineBytes are split.
type lineWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
	log logrus.FieldLogger
}

func newLineWriter(log logrus.FieldLogger) *lineWriter {
	return &lineWriter{log: log}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line: put it back unless it is already too long.
			if len(line) >= maxLineBytes {
				w.emit(line)
			} else {
				w.buf.Write(line)
			}
			break
		}
		w.emit(line)
	}
	return len(p), nil
}

// Flush logs any buffered partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r\n")
	w.log.Info(string(line))
}
