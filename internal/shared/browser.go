package shared

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

var startCommand = func(cmd *exec.Cmd) error { return cmd.Start() }

// launchers maps GOOS to the program and leading arguments that hand a URL to the desktop.
var launchers = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"openbsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// OpenBrowser opens a track page (or any http(s) link) in the default system browser.
//
// Other schemes are rejected so the desktop opener is never handed a local path or command.
func OpenBrowser(link string) error {
	u, err := url.Parse(link)
	if err != nil || link == "" {
		return fmt.Errorf("%w: invalid URL %q", ErrInvalidArgument, link)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported URL scheme %q", ErrInvalidArgument, u.Scheme)
	}

	rt := getRuntime()
	launcher, ok := launchers[rt]
	if !ok {
		return fmt.Errorf("unsupported platform: %s", rt)
	}

	args := append(append([]string{}, launcher[1:]...), u.String())
	if err := startCommand(exec.Command(launcher[0], args...)); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
