// Package log writes and reads the compressed per-round JSONL log.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"sitelocation.ai/internal/sim/game"
)

// JSONLZstdWriter appends one JSON document per line to a zstd stream. The file is opened lazily
// on the first write and every line is flushed through to the encoder.
type JSONLZstdWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewJSONLZstdWriter(path string) *JSONLZstdWriter {
	return &JSONLZstdWriter{path: path}
}

func (w *JSONLZstdWriter) Path() string { return w.path }

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err1 == nil {
			err1 = err
		}
		w.f = nil
	}
	w.w = nil
	return err1
}

// RoundLogger writes one JSONL entry per completed round (compressed).
type RoundLogger struct{ w *JSONLZstdWriter }

// NewRoundLogger logs to <dir>/rounds-<gameID>.jsonl.zst.
func NewRoundLogger(dir, gameID string) *RoundLogger {
	return &RoundLogger{w: NewJSONLZstdWriter(RoundLogPath(dir, gameID))}
}

func RoundLogPath(dir, gameID string) string {
	return filepath.Join(dir, fmt.Sprintf("rounds-%s.jsonl.zst", gameID))
}

func (l *RoundLogger) WriteRound(s game.RoundSummary) error { return l.w.Write(s) }
func (l *RoundLogger) Path() string                         { return l.w.Path() }
func (l *RoundLogger) Close() error                         { return l.w.Close() }

// ReadRounds decodes every entry of a round log in file order.
func ReadRounds(path string) ([]game.RoundSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var out []game.RoundSummary
	for sc.Scan() {
		var s game.RoundSummary
		if err := json.Unmarshal(sc.Bytes(), &s); err != nil {
			return nil, fmt.Errorf("%s: line %d: unmarshal: %w", filepath.Base(path), len(out)+1, err)
		}
		out = append(out, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
