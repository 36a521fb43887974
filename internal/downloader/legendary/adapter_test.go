package legendarydl

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tinoosan/gamedock/internal/data"
	"github.com/tinoosan/gamedock/internal/downloadcfg"
	"github.com/tinoosan/gamedock/internal/downloader"
	"github.com/tinoosan/gamedock/internal/legendary"
	"github.com/tinoosan/gamedock/internal/legendary/legendarytest"
)

func TestMain(m *testing.M) {
	legendarytest.Main()
	os.Exit(m.Run())
}

func newTestAdapter(t *testing.T) (*Adapter, chan downloader.Event, string) {
	t.Helper()
	c := legendary.NewClient("legendary", time.Second)
	cmd, logPath := legendarytest.Command(t)
	c.SetCommandFunc(cmd)
	events := make(chan downloader.Event, 16)
	return NewAdapter(c, downloader.NewChanReporter(events)), events, logPath
}

// next returns the next non-progress event.
func next(t *testing.T, events <-chan downloader.Event) downloader.Event {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == downloader.EventProgress {
				continue
			}
			return e
		case <-timeout:
			t.Fatalf("timed out waiting for event")
		}
	}
}

// waitForCalls blocks until the fake CLI has recorded n calls of the given
// subcommand. Spawn returns before the child writes its call log.
func waitForCalls(t *testing.T, logPath, sub string, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		calls := legendarytest.Calls(t, logPath)
		got := 0
		for _, c := range calls {
			if len(c) > 0 && c[0] == sub {
				got++
			}
		}
		if got >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("want %d %q calls, got %q", n, sub, calls)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAdapterStart(t *testing.T) {
	t.Run("success without tags skips optional content", func(t *testing.T) {
		a, events, logPath := newTestAdapter(t)
		job := &downloader.Job{HandleID: "h1", TitleID: "Sugar", Kind: data.KindInstall}
		if err := a.Start(context.Background(), job); err != nil {
			t.Fatalf("start: %v", err)
		}
		if e := next(t, events); e.Type != downloader.EventStart {
			t.Fatalf("first event = %s", e.Type)
		}
		if e := next(t, events); e.Type != downloader.EventSucceeded || e.HandleID != "h1" {
			t.Fatalf("terminal event = %#v", e)
		}
		calls := legendarytest.Calls(t, logPath)
		want := []string{"install", "Sugar", "-y", "--skip-sdl"}
		if len(calls) != 1 || !reflect.DeepEqual(calls[0], want) {
			t.Fatalf("calls = %q", calls)
		}
	})

	t.Run("passes install tags in order", func(t *testing.T) {
		a, events, logPath := newTestAdapter(t)
		job := &downloader.Job{HandleID: "h1", TitleID: "Fortnite", Kind: data.KindInstall,
			Options: downloadcfg.StartOptions{Tags: []string{"a", "b"}, BaseDir: "/games"}}
		if err := a.Start(context.Background(), job); err != nil {
			t.Fatalf("start: %v", err)
		}
		next(t, events)
		next(t, events)
		want := []string{"install", "Fortnite", "-y", "--base-path", "/games", "--install-tag", "a", "--install-tag", "b"}
		if calls := legendarytest.Calls(t, logPath); !reflect.DeepEqual(calls[0], want) {
			t.Fatalf("calls = %q", calls)
		}
	})

	t.Run("error exit reports reason", func(t *testing.T) {
		a, events, _ := newTestAdapter(t)
		_ = a.Start(context.Background(), &downloader.Job{HandleID: "h", TitleID: "fail", Kind: data.KindInstall})
		next(t, events)
		e := next(t, events)
		if e.Type != downloader.EventFailed || e.Reason != "disk full" {
			t.Fatalf("unexpected terminal %#v", e)
		}
	})

	t.Run("clean exit without completion marker fails", func(t *testing.T) {
		a, events, _ := newTestAdapter(t)
		_ = a.Start(context.Background(), &downloader.Job{HandleID: "h", TitleID: "nomarker", Kind: data.KindRepair})
		next(t, events)
		e := next(t, events)
		if e.Type != downloader.EventFailed || !strings.Contains(e.Reason, downloader.ErrUnexpectedExit.Error()) {
			t.Fatalf("unexpected terminal %#v", e)
		}
	})

	t.Run("duplicate handle rejected", func(t *testing.T) {
		a, events, _ := newTestAdapter(t)
		job := &downloader.Job{HandleID: "h", TitleID: "hang", Kind: data.KindInstall}
		if err := a.Start(context.Background(), job); err != nil {
			t.Fatalf("start: %v", err)
		}
		if err := a.Start(context.Background(), job); !errors.Is(err, downloader.ErrAlreadyRunning) {
			t.Fatalf("expected ErrAlreadyRunning, got %v", err)
		}
		_ = a.Cancel(context.Background(), job)
		next(t, events)
		if e := next(t, events); e.Type != downloader.EventCancelled {
			t.Fatalf("expected cancelled, got %s", e.Type)
		}
	})
}

func TestAdapterPauseResumeCancel(t *testing.T) {
	a, events, logPath := newTestAdapter(t)
	ctx := context.Background()
	job := &downloader.Job{HandleID: "h", TitleID: "hang", Kind: data.KindUpdate}
	if err := a.Start(ctx, job); err != nil {
		t.Fatalf("start: %v", err)
	}
	next(t, events)
	waitForCalls(t, logPath, "update", 1)

	if err := a.Pause(ctx, job); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if e := next(t, events); e.Type != downloader.EventPaused {
		t.Fatalf("expected paused, got %s", e.Type)
	}
	// pausing twice is harmless
	if err := a.Pause(ctx, job); err != nil {
		t.Fatalf("second pause: %v", err)
	}

	if err := a.Resume(ctx, job); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if e := next(t, events); e.Type != downloader.EventResumed {
		t.Fatalf("expected resumed, got %s", e.Type)
	}
	waitForCalls(t, logPath, "update", 2)

	if err := a.Cancel(ctx, job); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if e := next(t, events); e.Type != downloader.EventCancelled {
		t.Fatalf("expected cancelled, got %s", e.Type)
	}
	if err := a.Cancel(ctx, job); !errors.Is(err, downloader.ErrNotFound) {
		t.Fatalf("second cancel: %v", err)
	}
}

func TestAdapterCancelWhilePaused(t *testing.T) {
	a, events, _ := newTestAdapter(t)
	ctx := context.Background()
	job := &downloader.Job{HandleID: "h", TitleID: "hang", Kind: data.KindInstall}
	_ = a.Start(ctx, job)
	next(t, events)
	_ = a.Pause(ctx, job)
	next(t, events)

	if err := a.Cancel(ctx, job); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if e := next(t, events); e.Type != downloader.EventCancelled {
		t.Fatalf("expected cancelled, got %s", e.Type)
	}
}

func TestAdapterPauseWhileStarting(t *testing.T) {
	c := legendary.NewClient("legendary", time.Second)
	cmd, logPath := legendarytest.Command(t)
	entered := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	c.SetCommandFunc(func(ctx context.Context, name string, args ...string) *exec.Cmd {
		once.Do(func() {
			close(entered)
			<-gate
		})
		return cmd(ctx, name, args...)
	})
	events := make(chan downloader.Event, 16)
	a := NewAdapter(c, downloader.NewChanReporter(events))
	ctx := context.Background()
	job := &downloader.Job{HandleID: "h", TitleID: "hang", Kind: data.KindInstall}

	started := make(chan error, 1)
	go func() { started <- a.Start(ctx, job) }()
	<-entered
	if err := a.Pause(ctx, job); err != nil {
		t.Fatalf("pause during start: %v", err)
	}
	close(gate)
	if err := <-started; err != nil {
		t.Fatalf("start: %v", err)
	}
	if e := next(t, events); e.Type != downloader.EventStart {
		t.Fatalf("expected start, got %s", e.Type)
	}
	if e := next(t, events); e.Type != downloader.EventPaused {
		t.Fatalf("pause issued while starting was lost, got %s", e.Type)
	}

	if err := a.Resume(ctx, job); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if e := next(t, events); e.Type != downloader.EventResumed {
		t.Fatalf("expected resumed, got %s", e.Type)
	}
	waitForCalls(t, logPath, "install", 1)
	if err := a.Cancel(ctx, job); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if e := next(t, events); e.Type != downloader.EventCancelled {
		t.Fatalf("expected cancelled, got %s", e.Type)
	}
}

func TestAdapterPauseForbiddenKinds(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	for _, k := range []data.OperationKind{data.KindMove, data.KindRepair} {
		job := &downloader.Job{HandleID: "h", TitleID: "x", Kind: k}
		if err := a.Pause(context.Background(), job); !errors.Is(err, downloader.ErrNotPausable) {
			t.Fatalf("%s pause: %v", k, err)
		}
		if err := a.Resume(context.Background(), job); !errors.Is(err, downloader.ErrNotPausable) {
			t.Fatalf("%s resume: %v", k, err)
		}
	}
}

func TestArgs(t *testing.T) {
	cases := []struct {
		job  downloader.Job
		want []string
	}{
		{downloader.Job{TitleID: "g", Kind: data.KindUpdate}, []string{"update", "g", "-y"}},
		{downloader.Job{TitleID: "g", Kind: data.KindRepair}, []string{"repair", "g", "-y"}},
		{downloader.Job{TitleID: "g", Kind: data.KindMove, Options: downloadcfg.StartOptions{Destination: "/new"}}, []string{"move", "g", "/new", "-y"}},
	}
	for _, tc := range cases {
		if got := args(tc.job); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %q want %q", tc.job.Kind, got, tc.want)
		}
	}
}

func TestParseProgress(t *testing.T) {
	p, ok := parseProgress("[DLManager] INFO: = Progress: 42.50% (1/2), Running for 00:00:01", downloader.Progress{})
	if !ok || p.Percent != 42.5 {
		t.Fatalf("percent parse: %#v %v", p, ok)
	}
	p, ok = parseProgress("[DLManager] INFO:  - Downloaded: 2.00 MiB, Written: 2.00 MiB", p)
	if !ok || p.Downloaded != 2*1024*1024 || p.Percent != 42.5 {
		t.Fatalf("downloaded parse: %#v", p)
	}
	if _, ok := parseProgress("[cli] INFO: hello", p); ok {
		t.Fatalf("unrelated line parsed as progress")
	}
}
