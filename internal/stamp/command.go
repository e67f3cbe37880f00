package stamp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

// Command invokes an external rendering executable: the original PDF on
// stdin, the mark as arguments, the stamped PDF on stdout. This keeps the
// rendering primitive out-of-process, matching its role as an external
// collaborator.
type Command struct {
	Path string
}

var _ Stamper = (*Command)(nil)

// Stamp runs the configured executable under the caller's context, so
// finalize timeouts bound the render as well.
func (c *Command) Stamp(ctx context.Context, original []byte, mark Mark) ([]byte, error) {
	if c.Path == "" {
		return nil, errors.New("stamp command: path not configured")
	}
	cmd := exec.CommandContext(ctx, c.Path,
		"--page", strconv.Itoa(mark.Page),
		"--x", strconv.FormatFloat(mark.XPercent, 'f', -1, 64),
		"--y", strconv.FormatFloat(mark.YPercent, 'f', -1, 64),
	)
	cmd.Stdin = bytes.NewReader(original)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("stamp command: %w (%s)", err, bytes.TrimSpace(stderr.Bytes()))
	}
	if out.Len() == 0 {
		return nil, errors.New("stamp command: empty output")
	}
	return out.Bytes(), nil
}
