package router

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "github.com/tinoosan/gamedock/api/v1"
	"github.com/tinoosan/gamedock/internal/auth"
)

// Readiness reports whether the sources finished initializing.
type Readiness interface {
	Ready() bool
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Token  string
	API    *v1.Handler
	Ready  Readiness
	Events http.Handler
}

// New sets up the application routes and required middleware.
func New(logger *slog.Logger, d Deps) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write healthz response", "err", err)
		}
	}).Methods("GET")
	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready == nil || !d.Ready.Ready() {
			http.Error(w, "initializing", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ready"))
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.Use(v1.RequestID)
	r.Use(d.API.Log)
	r.Use(auth.Middleware(d.Token))

	api := r.PathPrefix("/v1").Subrouter()

	// GETs
	get := api.Methods("GET").Subrouter()
	get.HandleFunc("/titles", d.API.GetTitles)
	get.HandleFunc("/titles/{id}", d.API.GetTitle)
	get.HandleFunc("/titles/{id}/commands", d.API.GetTitleCommands)
	get.HandleFunc("/commands", d.API.GetGlobalCommands)
	get.HandleFunc("/handles", d.API.GetHandles)
	get.HandleFunc("/prompts", d.API.GetPrompts)
	if d.Events != nil {
		get.Handle("/events", d.Events)
	}

	// POSTs
	post := api.Methods("POST").Subrouter()
	post.HandleFunc("/titles/{id}/commands", d.API.InvokeTitleCommand)
	post.HandleFunc("/commands", d.API.InvokeGlobalCommand)
	post.HandleFunc("/prompts/{id}", d.API.AnswerPrompt)

	return r
}
