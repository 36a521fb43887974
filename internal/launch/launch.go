// Package launch starts installed titles and classifies launch failures.
package launch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/tinoosan/gamedock/internal/legendary"
)

type Reason int

const (
	ReasonOther Reason = iota
	// ReasonUpdatePending means the backend refused to start an outdated title.
	ReasonUpdatePending
)

func (r Reason) String() string {
	if r == ReasonUpdatePending {
		return "UpdatePending"
	}
	return "Other"
}

// Error is a failed launch.
type Error struct {
	Reason  Reason
	Message string
}

func (e *Error) Error() string { return "game failed to launch: " + e.Message }

// Is matches errors of the same Reason, so errors.Is(err, ErrUpdatePending) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Reason == e.Reason
}

// ErrUpdatePending matches launch errors caused by a pending update.
var ErrUpdatePending = &Error{Reason: ReasonUpdatePending}

// outdatedPrefix starts the line legendary prints when it refuses to launch a
// title with a pending update.
const outdatedPrefix = "Game is out of date"

// Classify maps a backend failure message to a Reason. Only the backend's
// update-pending line and the bare "update available" reason count.
func Classify(msg string) Reason {
	m := strings.TrimSpace(msg)
	if strings.HasPrefix(m, outdatedPrefix) || strings.EqualFold(m, "update available") {
		return ReasonUpdatePending
	}
	return ReasonOther
}

// Params describes how to start a title's executable.
type Params struct {
	Executable   string            `json:"game_executable"`
	Directory    string            `json:"game_directory"`
	WorkingDir   string            `json:"working_directory"`
	GameArgs     []string          `json:"game_parameters"`
	LaunchPrefix []string          `json:"launch_command"`
	EGLArgs      []string          `json:"egl_parameters"`
	Environment  map[string]string `json:"environment"`

	// URI is set instead of the fields above for titles handed off to Origin.
	URI string `json:"uri"`
}

// Command returns the argv for p.
func (p *Params) Command() []string {
	exe := p.Executable
	if exe != "" && !strings.HasPrefix(exe, "/") && p.Directory != "" {
		exe = p.Directory + "/" + exe
	}
	out := append([]string(nil), p.LaunchPrefix...)
	out = append(out, exe)
	out = append(out, p.GameArgs...)
	return append(out, p.EGLArgs...)
}

// Options tune a launch.
type Options struct {
	// SkipVersionCheck starts the title even when an update is pending.
	SkipVersionCheck bool
	Offline          bool
	// Origin asks for the Origin hand-off URI instead of an executable.
	Origin bool
}

// StartFunc starts the resolved game process. Tests replace it.
type StartFunc func(p *Params) (*exec.Cmd, error)

// Launcher resolves launch parameters through the backend and starts games.
type Launcher struct {
	cl    *legendary.Client
	start StartFunc
	log   *slog.Logger

	mu      sync.Mutex
	running map[string]*exec.Cmd
}

func NewLauncher(cl *legendary.Client) *Launcher {
	return &Launcher{cl: cl, start: startProcess, log: slog.Default(), running: make(map[string]*exec.Cmd)}
}

// SetLogger allows wiring a shared application logger into the launcher.
func (l *Launcher) SetLogger(lg *slog.Logger) {
	if lg != nil {
		l.log = lg
	}
}

// SetStartFunc replaces how game processes are started.
func (l *Launcher) SetStartFunc(f StartFunc) {
	if f != nil {
		l.start = f
	}
}

// Running reports whether a game started by this launcher is still alive.
func (l *Launcher) Running(app string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.running[app]
	return ok
}

// Resolve asks the backend for launch parameters. Failures are *Error.
func (l *Launcher) Resolve(ctx context.Context, app string, o Options) (*Params, error) {
	args := []string{"launch", app, "--json"}
	if o.SkipVersionCheck {
		args = append(args, "--skip-version-check")
	}
	if o.Offline {
		args = append(args, "--offline")
	}
	if o.Origin {
		args = append(args, "--origin")
	}
	res, err := l.cl.Run(ctx, args...)
	if err != nil {
		var ee *legendary.ExitError
		if errors.As(err, &ee) && ee.Message != "" {
			return nil, &Error{Reason: Classify(ee.Message), Message: ee.Message}
		}
		return nil, &Error{Reason: ReasonOther, Message: err.Error()}
	}
	var p Params
	if err := json.Unmarshal(res.Stdout, &p); err != nil {
		return nil, &Error{Reason: ReasonOther, Message: "backend exited unexpectedly"}
	}
	return &p, nil
}

// ErrNoOriginURI is returned when the backend answers an Origin launch without
// a URI.
var ErrNoOriginURI = &Error{Reason: ReasonOther, Message: "backend returned no Origin URI"}

// OriginURI resolves the URI that hands app off to the Origin client. No
// process is started.
func (l *Launcher) OriginURI(ctx context.Context, app string, offline bool) (string, error) {
	p, err := l.Resolve(ctx, app, Options{Offline: offline, Origin: true})
	if err != nil {
		l.log.Warn("origin launch failed", "app", app, "reason", launchReason(err), "err", err)
		return "", err
	}
	if p.URI == "" {
		return "", ErrNoOriginURI
	}
	l.log.Info("origin launch resolved", "app", app)
	return p.URI, nil
}

// Launch resolves and starts app. onExit runs once the game process ends.
func (l *Launcher) Launch(ctx context.Context, app string, o Options, onExit func()) error {
	p, err := l.Resolve(ctx, app, o)
	if err != nil {
		l.log.Warn("launch failed", "app", app, "reason", launchReason(err), "err", err)
		return err
	}
	cmd, err := l.start(p)
	if err != nil {
		return &Error{Reason: ReasonOther, Message: err.Error()}
	}
	l.mu.Lock()
	l.running[app] = cmd
	l.mu.Unlock()
	l.log.Info("game started", "app", app, "pid", pid(cmd))

	go func() {
		werr := cmd.Wait()
		l.mu.Lock()
		delete(l.running, app)
		l.mu.Unlock()
		l.log.Info("game exited", "app", app, "err", werr)
		if onExit != nil {
			onExit()
		}
	}()
	return nil
}

func launchReason(err error) Reason {
	var le *Error
	if errors.As(err, &le) {
		return le.Reason
	}
	return ReasonOther
}

func pid(cmd *exec.Cmd) int {
	if cmd.Process == nil {
		return 0
	}
	return cmd.Process.Pid
}

func startProcess(p *Params) (*exec.Cmd, error) {
	argv := p.Command()
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("no executable in launch parameters")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = p.WorkingDir
	cmd.Env = os.Environ()
	for k, v := range p.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}
