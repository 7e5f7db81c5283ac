package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

var ErrMismatch = errors.New("passphrases do not match")

// Source resolves the operator keystore passphrase once, from the
// environment or from the terminal.
type Source struct {
	envVar string
	prompt func(label string) (string, error)

	once  sync.Once
	value string
	err   error
}

// NewSource checks envVar before prompting on stdin.
func NewSource(envVar string) *Source {
	return &Source{envVar: strings.TrimSpace(envVar), prompt: terminalPrompt}
}

// Get returns the passphrase. confirm asks for it twice when prompting, which
// the node does when it is about to create a new keystore.
func (s *Source) Get(confirm bool) (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve(confirm)
	})
	return s.value, s.err
}

func (s *Source) resolve(confirm bool) (string, error) {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}
	if s.prompt == nil {
		return "", fmt.Errorf("operator keystore passphrase required; set %s", s.envVar)
	}
	first, err := s.prompt("Enter operator keystore passphrase: ")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(first) == "" {
		return "", errors.New("operator keystore passphrase cannot be empty")
	}
	if confirm {
		second, err := s.prompt("Repeat passphrase: ")
		if err != nil {
			return "", err
		}
		if first != second {
			return "", ErrMismatch
		}
	}
	return first, nil
}

func terminalPrompt(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("operator keystore passphrase required and no terminal available")
	}
	fmt.Fprint(os.Stderr, label)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(raw), nil
}
