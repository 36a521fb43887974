package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tinoosan/gamedock/internal/commands"
	"github.com/tinoosan/gamedock/internal/lifecycle"
	"github.com/tinoosan/gamedock/internal/prompt"
	"github.com/tinoosan/gamedock/internal/repo"
)

// CommandHost builds the command lists of titles and sources.
type CommandHost interface {
	TitleCommands(ctx context.Context, id string) ([]commands.Command, error)
	GlobalCommands(ctx context.Context, slug string) ([]commands.Command, error)
}

// Prompts exposes the open forms and accepts answers.
type Prompts interface {
	Prompts() []*prompt.Prompt
	Answer(ctx context.Context, id string, r prompt.Response) error
}

// HandleLister lists the running operations.
type HandleLister interface {
	Snapshots() []lifecycle.Snapshot
}

// Handler serves the v1 API.
type Handler struct {
	l       *slog.Logger
	titles  repo.TitleReader
	host    CommandHost
	prompts Prompts
	handles []HandleLister
}

func NewHandler(l *slog.Logger, titles repo.TitleReader, host CommandHost, prompts Prompts, handles ...HandleLister) *Handler {
	return &Handler{l: l, titles: titles, host: host, prompts: prompts, handles: handles}
}

type commandBody struct {
	Label string `json:"label"`
}

func (h *Handler) GetTitles(w http.ResponseWriter, r *http.Request) {
	titles, err := h.titles.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := titles.ToJSON(w); err != nil {
		markErr(w, err)
	}
}

func (h *Handler) GetTitle(w http.ResponseWriter, r *http.Request) {
	t, err := h.titles.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = t.ToJSON(w)
}

func (h *Handler) GetTitleCommands(w http.ResponseWriter, r *http.Request) {
	cmds, err := h.host.TitleCommands(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commands.Views(cmds))
}

func (h *Handler) InvokeTitleCommand(w http.ResponseWriter, r *http.Request) {
	var body commandBody
	if err := decodeJSONStrict(w, r, &body, maxBody, "application/json"); err != nil {
		h.badBody(w, err)
		return
	}
	if body.Label == "" {
		writeError(w, ErrLabelRequired)
		return
	}
	cmds, err := h.host.TitleCommands(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	h.invoke(w, r, cmds, body.Label)
}

func (h *Handler) GetGlobalCommands(w http.ResponseWriter, r *http.Request) {
	cmds, err := h.globalCommands(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commands.Views(cmds))
}

func (h *Handler) InvokeGlobalCommand(w http.ResponseWriter, r *http.Request) {
	var body commandBody
	if err := decodeJSONStrict(w, r, &body, maxBody, "application/json"); err != nil {
		h.badBody(w, err)
		return
	}
	if body.Label == "" {
		writeError(w, ErrLabelRequired)
		return
	}
	cmds, err := h.globalCommands(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invoke(w, r, cmds, body.Label)
}

func (h *Handler) globalCommands(r *http.Request) ([]commands.Command, error) {
	slug := r.URL.Query().Get("source")
	if slug == "" {
		return nil, ErrSourceRequired
	}
	return h.host.GlobalCommands(r.Context(), slug)
}

func (h *Handler) invoke(w http.ResponseWriter, r *http.Request, cmds []commands.Command, label string) {
	if err := commands.Invoke(r.Context(), cmds, label); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) GetHandles(w http.ResponseWriter, r *http.Request) {
	out := []lifecycle.Snapshot{}
	for _, l := range h.handles {
		out = append(out, l.Snapshots()...)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetPrompts(w http.ResponseWriter, r *http.Request) {
	out := h.prompts.Prompts()
	if out == nil {
		out = []*prompt.Prompt{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) AnswerPrompt(w http.ResponseWriter, r *http.Request) {
	var resp prompt.Response
	if err := decodeJSONStrict(w, r, &resp, maxBody, "application/json"); err != nil {
		h.badBody(w, err)
		return
	}
	if resp.Button == "" {
		writeError(w, ErrButtonRequired)
		return
	}
	if err := h.prompts.Answer(r.Context(), mux.Vars(r)["id"], resp); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) badBody(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrContentType) {
		writeError(w, err)
		return
	}
	markErr(w, err)
	http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
}
