package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// ClipDevice replays an already-recorded clip, e.g. audio uploaded by a client.
type ClipDevice struct {
	Audio       []byte
	ContentType string
}

// Open returns a stream over the clip.
func (d ClipDevice) Open(context.Context) (Stream, error) {
	return &clipStream{Reader: bytes.NewReader(d.Audio), contentType: d.ContentType}, nil
}

type clipStream struct {
	*bytes.Reader
	contentType string
}

func (s *clipStream) ContentType() string { return s.contentType }
func (s *clipStream) Close() error        { return nil }

// CommandDevice records from a microphone by running a capture command that
// writes one utterance to stdout and exits (e.g., arecord with a duration).
type CommandDevice struct {
	Command     []string
	ContentType string
}

// Open starts the capture process. Closing the stream waits for the process.
func (d CommandDevice) Open(ctx context.Context) (Stream, error) {
	if len(d.Command) == 0 {
		return nil, errors.New("no capture command configured")
	}
	cmd := exec.CommandContext(ctx, d.Command[0], d.Command[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", d.Command[0], err)
	}
	contentType := d.ContentType
	if contentType == "" {
		contentType = "audio/wav"
	}
	return &commandStream{cmd: cmd, stdout: stdout, stderr: &stderr, contentType: contentType}, nil
}

type commandStream struct {
	cmd         *exec.Cmd
	stdout      io.ReadCloser
	stderr      *bytes.Buffer
	contentType string

	once sync.Once
	err  error
}

func (s *commandStream) Read(p []byte) (int, error) { return s.stdout.Read(p) }
func (s *commandStream) ContentType() string        { return s.contentType }

// Close reaps the capture process. It is safe to call more than once.
func (s *commandStream) Close() error {
	s.once.Do(func() {
		// Drain so the process is not blocked writing to a full pipe.
		_, _ = io.Copy(io.Discard, s.stdout)
		if err := s.cmd.Wait(); err != nil {
			msg := strings.TrimSpace(s.stderr.String())
			if msg != "" {
				s.err = fmt.Errorf("capture command: %w: %s", err, msg)
			} else {
				s.err = fmt.Errorf("capture command: %w", err)
			}
		}
	})
	return s.err
}
