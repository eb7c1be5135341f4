//go:build !windows

package cli

import "os/exec"

func setPlatformAttrs(cmd *exec.Cmd) {}
