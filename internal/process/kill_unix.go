//go:build unix

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// killProcessTree starts cmd in its own process group and makes
// cancellation signal the whole group, so helpers spawned by npm or yarn
// cannot hold the output pipes open.
func killProcessTree(cmd *exec.Cmd, sig os.Signal) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		s, ok := sig.(syscall.Signal)
		if !ok {
			return cmd.Process.Signal(sig)
		}
		return syscall.Kill(-cmd.Process.Pid, s)
	}
}
