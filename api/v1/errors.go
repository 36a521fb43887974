package v1

import (
	"errors"
	"net/http"

	"github.com/tinoosan/gamedock/internal/commands"
	"github.com/tinoosan/gamedock/internal/data"
	"github.com/tinoosan/gamedock/internal/lifecycle"
	"github.com/tinoosan/gamedock/internal/plugin"
	"github.com/tinoosan/gamedock/internal/prompt"
)

var (
	ErrContentType    = errors.New("Content-Type must be application/json")
	ErrLabelRequired  = errors.New("label is required")
	ErrButtonRequired = errors.New("button is required")
	ErrSourceRequired = errors.New("source query parameter is required")
)

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	markErr(w, err)
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrContentType):
		code = http.StatusUnsupportedMediaType
	case errors.Is(err, data.ErrNotFound),
		errors.Is(err, commands.ErrUnknownCommand),
		errors.Is(err, prompt.ErrUnknownPrompt),
		errors.Is(err, plugin.ErrUnknownSource):
		code = http.StatusNotFound
	case errors.Is(err, commands.ErrNotInvocable),
		errors.Is(err, lifecycle.ErrHandleExists),
		errors.Is(err, lifecycle.ErrInvalidState):
		code = http.StatusConflict
	case errors.Is(err, prompt.ErrUnknownButton),
		errors.Is(err, ErrLabelRequired),
		errors.Is(err, ErrButtonRequired),
		errors.Is(err, ErrSourceRequired),
		errors.Is(err, data.ErrInvalidID):
		code = http.StatusBadRequest
	}
	http.Error(w, err.Error(), code)
}
