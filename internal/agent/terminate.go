package agent

import "os"

// Terminator stops a running agent process. Implementations differ per
// platform: Windows needs the whole process tree killed, elsewhere the
// process is signalled directly.
type Terminator interface {
	Terminate(p *os.Process) error
}

// TerminatorFunc adapts a function to the Terminator interface.
type TerminatorFunc func(p *os.Process) error

// Terminate calls f(p).
func (f TerminatorFunc) Terminate(p *os.Process) error {
	return f(p)
}

// DefaultTerminator returns the process control used on this platform.
func DefaultTerminator() Terminator {
	return platformTerminator{}
}
