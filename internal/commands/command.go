// Package commands derives the ordered actions a caller may invoke for a
// title or a source from current state.
package commands

import (
	"context"
	"errors"
	"strings"
)

// ErrNotInvocable is returned when a label names a separator, a header or a
// command with only sub-commands.
var ErrNotInvocable = errors.New("command has no action")

// ErrUnknownCommand is returned when no command carries the requested label.
var ErrUnknownCommand = errors.New("unknown command")

// Action is the invocation closure of a command.
type Action func(ctx context.Context) error

// Command is a labeled operation. A command with an empty label and no action
// is a separator; one with a label and no action is a static line of text.
type Command struct {
	Label  string    `json:"label"`
	Action Action    `json:"-"`
	Sub    []Command `json:"sub,omitempty"`
}

// Separator returns an empty command used to group entries.
func Separator() Command { return Command{} }

func (c Command) IsSeparator() bool { return c.Label == "" && c.Action == nil && len(c.Sub) == 0 }

// Invocable reports whether the command carries an action.
func (c Command) Invocable() bool { return c.Action != nil }

// View is the serialisable form of a Command.
type View struct {
	Label     string `json:"label"`
	Invocable bool   `json:"invocable"`
	Separator bool   `json:"separator,omitempty"`
	Sub       []View `json:"sub,omitempty"`
}

// Views converts commands into their serialisable form.
func Views(cmds []Command) []View {
	out := make([]View, 0, len(cmds))
	for _, c := range cmds {
		v := View{Label: c.Label, Invocable: c.Invocable(), Separator: c.IsSeparator()}
		if len(c.Sub) > 0 {
			v.Sub = Views(c.Sub)
		}
		out = append(out, v)
	}
	return out
}

// Find looks up a command by label. Nested commands are addressed as
// "Parent/Child".
func Find(cmds []Command, label string) (Command, bool) {
	head, rest, nested := strings.Cut(label, "/")
	for _, c := range cmds {
		if c.Label != head || c.IsSeparator() {
			continue
		}
		if !nested {
			return c, true
		}
		return Find(c.Sub, rest)
	}
	return Command{}, false
}

// Invoke runs the command with the given label.
func Invoke(ctx context.Context, cmds []Command, label string) error {
	c, ok := Find(cmds, label)
	if !ok {
		return ErrUnknownCommand
	}
	if !c.Invocable() {
		return ErrNotInvocable
	}
	return c.Action(ctx)
}

// Labels lists the top-level labels, separators included as "".
func Labels(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Label
	}
	return out
}
