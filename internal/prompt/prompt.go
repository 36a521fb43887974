// Package prompt models interactive forms shown to the user and routes the
// user's answer back to the button that was pressed.
package prompt

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrUnknownPrompt = errors.New("unknown prompt")
	ErrUnknownButton = errors.New("unknown button")
)

type FieldKind string

const (
	FieldText   FieldKind = "text"
	FieldToggle FieldKind = "toggle"
	FieldInput  FieldKind = "input"
)

// Field is one entry of a form.
type Field struct {
	Kind  FieldKind `json:"kind"`
	Key   string    `json:"key,omitempty"`
	Label string    `json:"label"`
	// Checked is the initial toggle state.
	Checked bool `json:"checked,omitempty"`
	// Locked toggles cannot be changed by the user.
	Locked bool   `json:"locked,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Response is the user's answer to a prompt.
type Response struct {
	Button  string            `json:"button"`
	Toggles map[string]bool   `json:"toggles,omitempty"`
	Inputs  map[string]string `json:"inputs,omitempty"`
}

// Toggled reports the final state of a toggle field, falling back to its
// initial state when the response omits it. Locked fields keep their initial state.
func (p *Prompt) Toggled(r Response, key string) bool {
	for _, f := range p.Fields {
		if f.Kind != FieldToggle || f.Key != key {
			continue
		}
		if f.Locked {
			return f.Checked
		}
		if v, ok := r.Toggles[key]; ok {
			return v
		}
		return f.Checked
	}
	return false
}

// ButtonFunc handles a button press.
type ButtonFunc func(ctx context.Context, r Response) error

type Button struct {
	Label  string     `json:"label"`
	Action ButtonFunc `json:"-"`
}

// Prompt is a form with fields and buttons. A prompt without buttons is a
// status message that stays until hidden.
type Prompt struct {
	ID      string   `json:"id"`
	Title   string   `json:"title,omitempty"`
	Text    string   `json:"text,omitempty"`
	Warning string   `json:"warning,omitempty"`
	Fields  []Field  `json:"fields,omitempty"`
	Buttons []Button `json:"buttons,omitempty"`
}

// Message returns a button-less prompt showing text.
func Message(text string) *Prompt { return &Prompt{Text: text} }

// Registry keeps prompts until they are answered or dismissed.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*Prompt
	order   []string
}

func NewRegistry() *Registry { return &Registry{pending: make(map[string]*Prompt)} }

// Add stores p, assigning an id when it has none.
func (r *Registry) Add(p *Prompt) string {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.pending[p.ID] = p
	return p.ID
}

// Pending returns the open prompts in the order they were added.
func (r *Registry) Pending() []*Prompt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Prompt, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.pending[id])
	}
	return out
}

// Remove drops a prompt. It reports whether the prompt was open.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; !ok {
		return false
	}
	delete(r.pending, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear drops every prompt.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.pending = make(map[string]*Prompt)
	r.order = nil
	r.mu.Unlock()
}

// Answer closes the prompt and runs the pressed button's action.
func (r *Registry) Answer(ctx context.Context, id string, resp Response) error {
	r.mu.Lock()
	p, ok := r.pending[id]
	r.mu.Unlock()
	if !ok {
		return ErrUnknownPrompt
	}
	var btn *Button
	for i := range p.Buttons {
		if p.Buttons[i].Label == resp.Button {
			btn = &p.Buttons[i]
			break
		}
	}
	if btn == nil {
		return ErrUnknownButton
	}
	if !r.Remove(id) {
		// answered concurrently
		return ErrUnknownPrompt
	}
	if btn.Action == nil {
		return nil
	}
	return btn.Action(ctx, resp)
}
