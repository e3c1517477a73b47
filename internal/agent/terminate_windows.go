//go:build windows

package agent

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// platformTerminator kills the agent together with every process it spawned.
// Windows has no process groups to signal, so the tree is walked by taskkill.
type platformTerminator struct{}

func (platformTerminator) Terminate(p *os.Process) error {
	if p == nil {
		return nil
	}
	cmd := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(p.Pid))
	if out, err := cmd.CombinedOutput(); err != nil {
		// Fall back to killing just the root process.
		if kerr := p.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			return fmt.Errorf("taskkill failed: %v (%s); kill failed: %w", err, out, kerr)
		}
	}
	return nil
}
