//go:build !windows

package videosynth

import "os/exec"

func setPlatformAttrs(*exec.Cmd) {}
