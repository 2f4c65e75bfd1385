package snaplapse

import (
	"os/exec"
	"runtime"
)

// openFolder shows dir in the platform's file browser. The browser process
// is left running on its own.
func openFolder(dir string) error {
	switch runtime.GOOS {
	case "windows":
		return exec.Command("explorer", dir).Start()
	case "darwin":
		return exec.Command("open", dir).Start()
	default:
		return exec.Command("xdg-open", dir).Start()
	}
}
