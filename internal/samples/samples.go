// Package samples reads recorded pose streams: one JSON-encoded JointSample per line.
package samples

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/andresmejia3/formcheck/internal/types"
)

// maxLine bounds a single encoded sample. Full-body samples are well under 8KB.
const maxLine = 1024 * 1024

// Reader decodes samples from a JSONL stream. Malformed lines are skipped and counted.
type Reader struct {
	scanner   *bufio.Scanner
	line      int
	malformed int
	lastErr   error
}

func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxLine)
	return &Reader{scanner: s}
}

// Next returns the next well-formed sample. It returns io.EOF at the end of
// the stream, or the underlying read error.
func (r *Reader) Next() (types.JointSample, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		var s types.JointSample
		if err := json.Unmarshal(line, &s); err != nil {
			r.malformed++
			r.lastErr = fmt.Errorf("line %d: %w", r.line, err)
			continue
		}
		return s, nil
	}
	if err := r.scanner.Err(); err != nil {
		return types.JointSample{}, fmt.Errorf("failed to read samples at line %d: %w", r.line+1, err)
	}
	return types.JointSample{}, io.EOF
}

// Malformed is the number of lines skipped so far.
func (r *Reader) Malformed() int { return r.malformed }

// LastError describes the most recent malformed line, or nil.
func (r *Reader) LastError() error { return r.lastErr }

// CountLines counts the non-blank lines in a file for the progress bar.
func CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), maxLine)
	n := 0
	for s.Scan() {
		if len(bytes.TrimSpace(s.Bytes())) > 0 {
			n++
		}
	}
	return n, s.Err()
}
