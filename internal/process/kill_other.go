//go:build !unix

package process

import (
	"os"
	"os/exec"
)

// killProcessTree kills the direct child. Without process groups,
// descendants are left to WaitDelay.
func killProcessTree(cmd *exec.Cmd, _ os.Signal) {
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}
}
