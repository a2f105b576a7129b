// Package dispatch implements the command-table parsing rule of spec
// §4.F: scan argv left to right, and for each recognized command name
// hand its handler the longest suffix of following tokens that names no
// further command.
//
// Grounded directly on original_source/src/climpd/core/argument-parser.c
// (argument_parser_run's `j` scan-ahead loop) generalized from a C
// hash-map of `struct arg` to a Go map of Handler, and on
// climpd-control.c's per-command handler shape (one function per
// command, return value is a status).
package dispatch

import (
	"errors"
	"fmt"
)

// ErrUnknownCommand is passed to the default handler (and, if none is
// set, returned) for a token in command position that names no command.
var ErrUnknownCommand = errors.New("dispatch: unknown command")

// Handler runs one command against its sub-argv (the tokens consumed
// between this command and the next recognized command name).
type Handler func(name string, args []string) error

// DefaultHandler is invoked for a token that does not name a command
// where a command was expected.
type DefaultHandler func(token string) error

// Dispatcher holds the command table and runs argv against it.
type Dispatcher struct {
	commands map[string]Handler
	fallback DefaultHandler
}

// New creates an empty Dispatcher with no default handler: until
// SetDefaultHandler installs one, Run reports an unrecognized token as
// ErrUnknownCommand.
func New() *Dispatcher {
	return &Dispatcher{commands: make(map[string]Handler)}
}

// Register binds a handler to one or more names for the same command
// (e.g. a long and short form). Re-registering a name overwrites it.
func (d *Dispatcher) Register(h Handler, names ...string) {
	for _, n := range names {
		d.commands[n] = h
	}
}

// SetDefaultHandler installs the handler invoked for unrecognized tokens
// in command position.
func (d *Dispatcher) SetDefaultHandler(h DefaultHandler) {
	d.fallback = h
}

// Contains reports whether name is a registered command.
func (d *Dispatcher) Contains(name string) bool {
	_, ok := d.commands[name]
	return ok
}

// Run scans argv left to right per the §4.F rule. Each command handler's
// error is collected (matching the original's "log and continue" policy:
// one failing command does not abort the rest of the line) and the last
// non-nil error is returned to the caller, who reports overall status.
func (d *Dispatcher) Run(argv []string) error {
	var lastErr error
	for i := 0; i < len(argv); i++ {
		name := argv[i]
		h, ok := d.commands[name]
		if !ok {
			if d.fallback != nil {
				if err := d.fallback(name); err != nil {
					lastErr = err
				}
			} else {
				lastErr = fmt.Errorf("%w: %s", ErrUnknownCommand, name)
			}
			continue
		}

		j := i + 1
		for j < len(argv) && !d.Contains(argv[j]) {
			j++
		}
		sub := argv[i+1 : j]
		if err := h(name, sub); err != nil {
			lastErr = fmt.Errorf("%s: %w", name, err)
		}
		i = j - 1
	}
	return lastErr
}
