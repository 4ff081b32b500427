package parser

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"
	"unicode/utf8"
)

const (
	defaultTimeoutSeconds = 30
	defaultMaxOutputBytes = 10 << 20 // 10 MB, output is capped beyond this
)

// ExternalCommand is the external-command-plugin arm of the Parser's
// dispatch table. The file path is appended as the final argv element;
// stdout is captured as UTF-8.
type ExternalCommand struct {
	Argv           []string
	TimeoutSeconds int
	MaxOutputBytes int64
}

func (c *ExternalCommand) Extract(path string, _ []byte) (ExtractedText, error) {
	if len(c.Argv) == 0 {
		return ExtractedText{}, &ParseError{Kind: ErrUnsupported, Path: path}
	}

	timeout := c.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}
	maxOut := c.MaxOutputBytes
	if maxOut <= 0 {
		maxOut = defaultMaxOutputBytes
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	argv := append(append([]string{}, c.Argv[1:]...), path)
	cmd := exec.CommandContext(ctx, c.Argv[0], argv...)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ExtractedText{}, &ParseError{Kind: ErrExitNonzero, Path: path, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return ExtractedText{}, &ParseError{Kind: ErrExitNonzero, Path: path, Err: err}
	}

	// Read at most maxOut+1 bytes so we can detect overflow without
	// buffering an unbounded, potentially adversarial stream.
	limited := io.LimitReader(stdout, maxOut+1)
	var buf bytes.Buffer
	_, readErr := io.Copy(&buf, limited)

	waitErr := cmd.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		return ExtractedText{}, &ParseError{Kind: ErrTimeout, Path: path, Err: ctx.Err()}
	}
	if readErr != nil {
		return ExtractedText{}, &ParseError{Kind: ErrExitNonzero, Path: path, Err: readErr}
	}
	if int64(buf.Len()) > maxOut {
		return ExtractedText{}, &ParseError{Kind: ErrOversize, Path: path}
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return ExtractedText{}, &ParseError{Kind: ErrExitNonzero, Path: path, Err: waitErr}
		}
		return ExtractedText{}, &ParseError{Kind: ErrExitNonzero, Path: path, Err: waitErr}
	}

	out := buf.Bytes()
	if !utf8.Valid(out) {
		return ExtractedText{}, &ParseError{Kind: ErrDecode, Path: path}
	}

	return ExtractedText{Text: string(out), FileType: "text"}, nil
}
