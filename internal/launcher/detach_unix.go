//go:build unix

package launcher

import (
	"os/exec"
	"syscall"
)

// setDetached starts the child in a new session so it outlives us and does
// not receive our terminal's signals.
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
