package samples

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andresmejia3/formcheck/internal/types"
)

const stream = `{"index":0,"ts":0,"landmarks":{"left_hip":{"x":200,"y":200,"z":0,"visibility":0.9},"left_knee":{"x":200,"y":300,"z":0,"visibility":0.8}}}

# recorded on a phone, 30fps
{"index":1,"ts":33,"landmarks":{"left_knee":{"x":201,"y":300,"z":0,"visibility":0.7},"left_pinky":{"x":1,"y":1,"z":0,"visibility":1}}}
{"index":2,"ts":66,"landmarks":
not json at all
{"index":3,"ts":100,"landmarks":{}}
`

func TestReader(t *testing.T) {
	r := NewReader(strings.NewReader(stream))

	var got []types.JointSample
	for {
		s, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, s)
	}

	if len(got) != 3 {
		t.Fatalf("decoded %d samples, want 3", len(got))
	}
	if r.Malformed() != 2 {
		t.Errorf("Malformed() = %d, want 2", r.Malformed())
	}
	if r.LastError() == nil || !strings.HasPrefix(r.LastError().Error(), "line 6:") {
		t.Errorf("LastError() = %v, want the error for line 6", r.LastError())
	}

	first := got[0]
	if first.Index != 0 || first.Get(types.LeftHip) == nil || first.Get(types.LeftKnee).InFrameLikelihood != 0.8 {
		t.Errorf("first sample decoded wrong: %+v", first)
	}
	if first.Get(types.LeftAnkle) != nil {
		t.Error("absent landmark should be nil")
	}

	// Unknown landmark names are dropped, known ones kept.
	if got[1].TimestampMS != 33 || got[1].Get(types.LeftKnee) == nil {
		t.Errorf("second sample decoded wrong: %+v", got[1])
	}
	if got[2].Index != 3 {
		t.Errorf("third sample index = %d, want 3", got[2].Index)
	}
}

func TestReaderLineTooLong(t *testing.T) {
	long := `{"index":0,"pad":"` + strings.Repeat("x", maxLine) + `"}` + "\n"
	r := NewReader(strings.NewReader(long))
	if _, err := r.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Errorf("expected a read error for an oversized line, got %v", err)
	}
}

func TestCountLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(path, []byte(stream), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := CountLines(path)
	if err != nil {
		t.Fatalf("CountLines failed: %v", err)
	}
	// Blank lines are not counted; comments and broken lines are.
	if n != 6 {
		t.Errorf("CountLines = %d, want 6", n)
	}

	if _, err := CountLines(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
