package visualization

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenBrowser opens the specified URL in the user's default browser.
func OpenBrowser(url string) error {
	cmd, err := browserCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}
	return cmd.Start()
}

// browserCommand returns the opener for goos: xdg-open on Linux, open on
// macOS and cmd start on Windows.
func browserCommand(goos, url string) (*exec.Cmd, error) {
	switch goos {
	case "linux":
		return exec.Command("xdg-open", url), nil
	case "darwin":
		return exec.Command("open", url), nil
	case "windows":
		return exec.Command("cmd", "/c", "start", url), nil
	}
	return nil, fmt.Errorf("unsupported platform: %s", goos)
}
