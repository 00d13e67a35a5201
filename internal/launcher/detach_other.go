//go:build !unix

package launcher

import "os/exec"

func setDetached(cmd *exec.Cmd) {}
