// Package delegate defines what a server does with each message.  A
// Delegate turns one request payload into one reply payload; the
// servers in internal/server own all of the I/O around it.
package delegate

import (
	"fmt"
	"sort"
)

// Delegate processes one inbound message.  An empty return means no
// reply is sent.
type Delegate interface {
	Process(msg []byte) []byte
}

// Func adapts an ordinary function to the Delegate interface.
type Func func(msg []byte) []byte

// Process calls f(msg).
func (f Func) Process(msg []byte) []byte { return f(msg) }

// Echo replies with the request unchanged.
type Echo struct{}

// Process returns msg.
func (Echo) Process(msg []byte) []byte { return msg }

// ByName returns the built-in delegate registered under name.
func ByName(name string) (Delegate, error) {
	switch name {
	case "sum":
		return Sum{}, nil
	case "echo":
		return Echo{}, nil
	}
	return nil, fmt.Errorf("unknown delegate %q (known: %v)", name, Names())
}

// Names lists the built-in delegates in a stable order.
func Names() []string {
	names := []string{"echo", "sum"}
	sort.Strings(names)
	return names
}
