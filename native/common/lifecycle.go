package common

// InitState tags the two construction phases of an engine.
type InitState uint8

const (
	Uninitialized InitState = iota
	Configured
)

// Lifecycle guards the one-shot Configure step of an engine.
type Lifecycle struct {
	state InitState
}

// Initialize moves the lifecycle to Configured. It fails on the second call.
func (l *Lifecycle) Initialize() error {
	if l.state == Configured {
		return ErrAlreadyInitialized
	}
	l.state = Configured
	return nil
}

// Configured reports whether Initialize has completed.
func (l *Lifecycle) Configured() bool {
	return l != nil && l.state == Configured
}

// RequireConfigured returns ErrNotInitialized until Initialize has run.
func (l *Lifecycle) RequireConfigured() error {
	if !l.Configured() {
		return ErrNotInitialized
	}
	return nil
}
