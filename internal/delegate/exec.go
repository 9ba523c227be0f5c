package delegate

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"time"

	"echonet/util"
)

// Exec pipes each message through a shell command: the message is the
// command's stdin and its stdout is the reply.  A command that fails or
// outlives Timeout yields an empty reply.
//
// The command runs synchronously, so on the stream server a slow
// command holds up every other client.
type Exec struct {
	Command string
	Timeout time.Duration
	Logger  *util.Logger
}

// Process implements Delegate.
func (e *Exec) Process(msg []byte) []byte {
	ctx := context.Background()
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd.exe", "/C", e.Command)
	} else {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", e.Command)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(msg)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 500 * time.Millisecond

	if err := cmd.Run(); err != nil {
		if e.Logger != nil {
			e.Logger.Warn("exec %q: %v %s", e.Command, err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil
	}
	return stdout.Bytes()
}
