//go:build unix

package agent

import (
	"errors"
	"os"
	"syscall"
)

// platformTerminator sends SIGTERM straight to the agent process.
type platformTerminator struct{}

func (platformTerminator) Terminate(p *os.Process) error {
	if p == nil {
		return nil
	}
	err := p.Signal(syscall.SIGTERM)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
