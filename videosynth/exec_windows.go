//go:build windows

package videosynth

import (
	"os/exec"
	"syscall"
)

// setPlatformAttrs hides the console window ffmpeg would otherwise flash
// open on Windows.
func setPlatformAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}
