package worker

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/andresmejia3/formcheck/internal/types"
	"github.com/andresmejia3/formcheck/internal/utils" // Using the SafeCommand wrapper
)

// DefaultScript is the pose model entry point, relative to the working directory.
const DefaultScript = "python/pose_worker.py"

// Response status bytes written by the pose worker.
const (
	StatusOK       byte = 0
	StatusError    byte = 1
	StatusNoPerson byte = 2
)

type PoseWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
}

func NewPoseWorker(id int, script string) (*PoseWorker, error) {
	if script == "" {
		script = DefaultScript
	}
	py := utils.NewSafeCommand("python3", "-u", script)

	// Side-channel pipe (FD 3) for clean data transfer; stdout stays free for model chatter.
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &PoseWorker{
		ID:       id,
		Cmd:      py,
		Stdin:    stdin,
		DataPipe: r,
	}, nil
}

// Communicate sends one length-prefixed frame and returns the raw response body.
func (w *PoseWorker) Communicate(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // A crashed worker surfaces here as EOF
	}

	respLen := binary.BigEndian.Uint32(header)
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessFrame runs pose estimation on one JPEG frame.
// Response body: [Status] then either a JSON landmark map (OK), [MsgLen][Msg] (Error),
// or nothing (no person in frame, returned as a nil map).
func (w *PoseWorker) ProcessFrame(frame []byte) (map[string]types.Landmark, error) {
	resp, err := w.Communicate(frame)
	if err != nil {
		return nil, fmt.Errorf("worker %d: %w", w.ID, err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("worker %d: empty response", w.ID)
	}

	switch resp[0] {
	case StatusOK:
		var landmarks map[string]types.Landmark
		if err := json.Unmarshal(resp[1:], &landmarks); err != nil {
			return nil, fmt.Errorf("worker %d: bad landmark payload: %w", w.ID, err)
		}
		return landmarks, nil
	case StatusNoPerson:
		return nil, nil
	case StatusError:
		body := resp[1:]
		if len(body) < 4 {
			return nil, fmt.Errorf("python worker error: truncated message")
		}
		msgLen := binary.BigEndian.Uint32(body[:4])
		if int(msgLen) > len(body)-4 {
			return nil, fmt.Errorf("python worker error: truncated message")
		}
		return nil, fmt.Errorf("python worker error: %s", body[4:4+msgLen])
	default:
		return nil, fmt.Errorf("worker %d: unknown status byte %d", w.ID, resp[0])
	}
}

func (w *PoseWorker) Close() {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd != nil {
		w.Cmd.Wait()
	}
}
