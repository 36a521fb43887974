package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinoosan/gamedock/internal/data"
	"github.com/tinoosan/gamedock/internal/downloader"
	legendarydl "github.com/tinoosan/gamedock/internal/downloader/legendary"
	"github.com/tinoosan/gamedock/internal/legendary"
	"github.com/tinoosan/gamedock/internal/legendary/legendarytest"
	"github.com/tinoosan/gamedock/internal/repo"
)

func TestMain(m *testing.M) {
	legendarytest.Main()
	os.Exit(m.Run())
}

// stubDL records calls and lets tests override behaviour per method.
type stubDL struct {
	mu      sync.Mutex
	started []*downloader.Job
	paused  int
	resumed int
	cancels int

	startFn  func(*downloader.Job) error
	cancelFn func(*downloader.Job) error
}

func (s *stubDL) Start(ctx context.Context, j *downloader.Job) error {
	s.mu.Lock()
	s.started = append(s.started, j)
	s.mu.Unlock()
	if s.startFn != nil {
		return s.startFn(j)
	}
	return nil
}

func (s *stubDL) Pause(ctx context.Context, j *downloader.Job) error {
	s.mu.Lock()
	s.paused++
	s.mu.Unlock()
	return nil
}

func (s *stubDL) Resume(ctx context.Context, j *downloader.Job) error {
	s.mu.Lock()
	s.resumed++
	s.mu.Unlock()
	return nil
}

func (s *stubDL) Cancel(ctx context.Context, j *downloader.Job) error {
	s.mu.Lock()
	s.cancels++
	s.mu.Unlock()
	if s.cancelFn != nil {
		return s.cancelFn(j)
	}
	return nil
}

func (s *stubDL) counts() (started, paused, resumed, cancels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.started), s.paused, s.resumed, s.cancels
}

// recorder collects callback outcomes.
type recorder struct {
	mu   sync.Mutex
	outs []Outcome
}

func (r *recorder) cb(o Outcome) {
	r.mu.Lock()
	r.outs = append(r.outs, o)
	r.mu.Unlock()
}

func (r *recorder) got() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outs...)
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func seed(t *testing.T, titles ...*data.Title) repo.TitleRepo {
	t.Helper()
	r := repo.NewInMemoryTitleRepo()
	if err := r.Replace(context.Background(), "legendary", titles); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return r
}

func notInstalled(id string) *data.Title {
	return &data.Title{ID: id, Name: id, Status: data.StatusNotInstalled}
}

func installed(id string, update bool) *data.Title {
	return &data.Title{ID: id, Name: id, Status: data.StatusInstalled, UpdateAvailable: update, InstallPath: "/games/" + id}
}

func newManager(t *testing.T, titles ...*data.Title) (*Manager, *stubDL, repo.TitleRepo) {
	t.Helper()
	r := seed(t, titles...)
	dl := &stubDL{}
	return New(quietLogger(), r, dl, nil), dl, r
}

func TestRequestInstallWithoutTags(t *testing.T) {
	m, dl, _ := newManager(t, notInstalled("Sugar"))
	if err := m.RequestInstall(context.Background(), "Sugar", nil, "", nil); err != nil {
		t.Fatalf("install: %v", err)
	}
	s, ok := m.Snapshot("Sugar")
	if !ok {
		t.Fatalf("no handle after install request")
	}
	if s.Kind != data.KindInstall || !s.Active || len(s.Tags) != 0 {
		t.Fatalf("snapshot = %+v", s)
	}
	if len(dl.started) != 1 || len(dl.started[0].Options.Tags) != 0 {
		t.Fatalf("started jobs = %+v", dl.started)
	}
	if dl.started[0].HandleID != s.ID {
		t.Fatalf("job handle %q != %q", dl.started[0].HandleID, s.ID)
	}
}

func TestRequestRejectsSecondHandle(t *testing.T) {
	m, dl, _ := newManager(t, notInstalled("Sugar"))
	if err := m.RequestInstall(context.Background(), "Sugar", []string{"a"}, "", nil); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := m.RequestInstall(context.Background(), "Sugar", nil, "", nil); !errors.Is(err, ErrHandleExists) {
		t.Fatalf("second install err = %v", err)
	}
	if started, _, _, _ := dl.counts(); started != 1 {
		t.Fatalf("started = %d", started)
	}
	if got := len(m.Snapshots()); got != 1 {
		t.Fatalf("handles = %d", got)
	}
}

func TestRequestChecksTitleState(t *testing.T) {
	m, _, _ := newManager(t, notInstalled("A"), installed("B", false), installed("C", true))
	ctx := context.Background()
	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"install installed", func() error { return m.RequestInstall(ctx, "B", nil, "", nil) }, ErrInvalidState},
		{"update without update", func() error { return m.RequestUpdate(ctx, "B", nil) }, ErrInvalidState},
		{"update not installed", func() error { return m.RequestUpdate(ctx, "A", nil) }, ErrInvalidState},
		{"repair not installed", func() error { return m.RequestRepair(ctx, "A", nil) }, ErrInvalidState},
		{"move not installed", func() error { return m.RequestMove(ctx, "A", "/x", nil) }, ErrInvalidState},
		{"unknown title", func() error { return m.RequestInstall(ctx, "Z", nil, "", nil) }, data.ErrNotFound},
		{"update pending", func() error { return m.RequestUpdate(ctx, "C", nil) }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSuccessFiresCallbackBeforeDetach(t *testing.T) {
	m, _, r := newManager(t, notInstalled("Sugar"))
	var sawHandle atomic.Bool
	rec := &recorder{}
	cb := func(o Outcome) {
		_, ok := m.Snapshot("Sugar")
		sawHandle.Store(ok)
		rec.cb(o)
	}
	if err := m.RequestInstall(context.Background(), "Sugar", nil, "", cb); err != nil {
		t.Fatalf("install: %v", err)
	}
	s, _ := m.Snapshot("Sugar")

	m.handle(downloader.Event{HandleID: s.ID, TitleID: "Sugar", Type: downloader.EventProgress, Progress: &downloader.Progress{Percent: 40}})
	if s, _ := m.Snapshot("Sugar"); s.Progress == nil || s.Progress.Percent != 40 {
		t.Fatalf("progress not recorded: %+v", s)
	}
	m.handle(downloader.Event{HandleID: s.ID, TitleID: "Sugar", Type: downloader.EventSucceeded})

	outs := rec.got()
	if len(outs) != 1 || outs[0].Result != Succeeded || outs[0].Kind != data.KindInstall {
		t.Fatalf("outcomes = %+v", outs)
	}
	if !sawHandle.Load() {
		t.Fatalf("handle was detached before the callback ran")
	}
	if _, ok := m.Snapshot("Sugar"); ok {
		t.Fatalf("handle still attached")
	}
	got, _ := r.Get(context.Background(), "Sugar")
	if got.Status != data.StatusInstalled {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestFailureRevertsAndStopIsNoop(t *testing.T) {
	m, dl, r := newManager(t, notInstalled("Sugar"))
	rec := &recorder{}
	if err := m.RequestInstall(context.Background(), "Sugar", nil, "", rec.cb); err != nil {
		t.Fatalf("install: %v", err)
	}
	s, _ := m.Snapshot("Sugar")
	m.handle(downloader.Event{HandleID: s.ID, TitleID: "Sugar", Type: downloader.EventFailed, Reason: "disk full"})
	m.Stop(context.Background(), "Sugar")

	outs := rec.got()
	if len(outs) != 1 || outs[0].Result != Failed || outs[0].Reason != "disk full" {
		t.Fatalf("outcomes = %+v", outs)
	}
	got, _ := r.Get(context.Background(), "Sugar")
	if got.Status != data.StatusNotInstalled {
		t.Fatalf("status = %s", got.Status)
	}
	if _, _, _, cancels := dl.counts(); cancels != 0 {
		t.Fatalf("stop after failure cancelled the backend %d times", cancels)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m, dl, r := newManager(t, installed("Sugar", true))
	rec := &recorder{}
	if err := m.RequestUpdate(context.Background(), "Sugar", rec.cb); err != nil {
		t.Fatalf("update: %v", err)
	}
	s, _ := m.Snapshot("Sugar")
	m.Stop(context.Background(), "Sugar")
	m.Stop(context.Background(), "Sugar")
	// the backend's own cancel event arrives afterwards
	m.handle(downloader.Event{HandleID: s.ID, TitleID: "Sugar", Type: downloader.EventCancelled})

	outs := rec.got()
	if len(outs) != 1 || outs[0].Result != Cancelled {
		t.Fatalf("outcomes = %+v", outs)
	}
	if _, _, _, cancels := dl.counts(); cancels != 1 {
		t.Fatalf("cancels = %d", cancels)
	}
	got, _ := r.Get(context.Background(), "Sugar")
	if !got.Installed() || !got.UpdateAvailable {
		t.Fatalf("cancelled update changed title: %+v", got)
	}
}

func TestStopRacesTerminalEvent(t *testing.T) {
	for i := 0; i < 50; i++ {
		m, _, _ := newManager(t, notInstalled("Sugar"))
		var calls atomic.Int32
		if err := m.RequestInstall(context.Background(), "Sugar", nil, "", func(Outcome) { calls.Add(1) }); err != nil {
			t.Fatalf("install: %v", err)
		}
		s, _ := m.Snapshot("Sugar")
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); m.Stop(context.Background(), "Sugar") }()
		go func() {
			defer wg.Done()
			m.handle(downloader.Event{HandleID: s.ID, TitleID: "Sugar", Type: downloader.EventSucceeded})
		}()
		wg.Wait()
		if n := calls.Load(); n != 1 {
			t.Fatalf("iteration %d: callback fired %d times", i, n)
		}
		if _, ok := m.Snapshot("Sugar"); ok {
			t.Fatalf("iteration %d: handle still attached", i)
		}
	}
}

func TestPauseResume(t *testing.T) {
	m, dl, _ := newManager(t, notInstalled("Sugar"))
	ctx := context.Background()
	if err := m.RequestInstall(ctx, "Sugar", nil, "", nil); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := m.Pause(ctx, "Sugar"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if s, _ := m.Snapshot("Sugar"); s.Active {
		t.Fatalf("still active after pause")
	}
	// pausing twice does not reach the backend again
	_ = m.Pause(ctx, "Sugar")
	if err := m.Resume(ctx, "Sugar"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if s, _ := m.Snapshot("Sugar"); !s.Active {
		t.Fatalf("not active after resume")
	}
	if _, paused, resumed, _ := dl.counts(); paused != 1 || resumed != 1 {
		t.Fatalf("paused=%d resumed=%d", paused, resumed)
	}
}

func TestPauseIgnoredForMoveAndRepair(t *testing.T) {
	m, dl, _ := newManager(t, installed("A", false), installed("B", false))
	ctx := context.Background()
	if err := m.RequestMove(ctx, "A", "/new", nil); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := m.RequestRepair(ctx, "B", nil); err != nil {
		t.Fatalf("repair: %v", err)
	}
	for _, id := range []string{"A", "B", "missing"} {
		before, _ := m.Snapshot(id)
		if err := m.Pause(ctx, id); err != nil {
			t.Fatalf("pause %s: %v", id, err)
		}
		if err := m.Resume(ctx, id); err != nil {
			t.Fatalf("resume %s: %v", id, err)
		}
		after, _ := m.Snapshot(id)
		if before.Active != after.Active {
			t.Fatalf("%s: active flag changed", id)
		}
	}
	if _, paused, resumed, _ := dl.counts(); paused != 0 || resumed != 0 {
		t.Fatalf("backend reached: paused=%d resumed=%d", paused, resumed)
	}
}

func TestMoveUpdatesInstallPath(t *testing.T) {
	m, _, r := newManager(t, installed("Sugar", false))
	if err := m.RequestMove(context.Background(), "Sugar", "/mnt/fast", nil); err != nil {
		t.Fatalf("move: %v", err)
	}
	s, _ := m.Snapshot("Sugar")
	m.handle(downloader.Event{HandleID: s.ID, TitleID: "Sugar", Type: downloader.EventSucceeded})
	got, _ := r.Get(context.Background(), "Sugar")
	if got.InstallPath != "/mnt/fast/Sugar" || !got.Installed() {
		t.Fatalf("after move: %+v", got)
	}
}

func TestStaleEventIgnored(t *testing.T) {
	m, _, r := newManager(t, notInstalled("Sugar"))
	rec := &recorder{}
	if err := m.RequestInstall(context.Background(), "Sugar", nil, "", rec.cb); err != nil {
		t.Fatalf("install: %v", err)
	}
	m.handle(downloader.Event{HandleID: "previous", TitleID: "Sugar", Type: downloader.EventSucceeded})
	if len(rec.got()) != 0 {
		t.Fatalf("stale event fired callback")
	}
	if _, ok := m.Snapshot("Sugar"); !ok {
		t.Fatalf("stale event detached handle")
	}
	got, _ := r.Get(context.Background(), "Sugar")
	if got.Installed() {
		t.Fatalf("stale event installed title")
	}
}

func TestStartFailureFiresCallback(t *testing.T) {
	m, dl, _ := newManager(t, notInstalled("Sugar"))
	dl.startFn = func(*downloader.Job) error { return errors.New("exec: not found") }
	rec := &recorder{}
	if err := m.RequestInstall(context.Background(), "Sugar", nil, "", rec.cb); err == nil {
		t.Fatalf("expected start error")
	}
	outs := rec.got()
	if len(outs) != 1 || outs[0].Result != Failed {
		t.Fatalf("outcomes = %+v", outs)
	}
	if _, ok := m.Snapshot("Sugar"); ok {
		t.Fatalf("handle left behind")
	}
}

func TestStopAll(t *testing.T) {
	m, dl, _ := newManager(t, notInstalled("A"), notInstalled("B"))
	ctx := context.Background()
	_ = m.RequestInstall(ctx, "A", nil, "", nil)
	_ = m.RequestInstall(ctx, "B", nil, "", nil)
	m.StopAll(ctx)
	if n := len(m.Snapshots()); n != 0 {
		t.Fatalf("handles left = %d", n)
	}
	if _, _, _, cancels := dl.counts(); cancels != 2 {
		t.Fatalf("cancels = %d", cancels)
	}
}

func TestObserverSeesLifecycle(t *testing.T) {
	m, _, _ := newManager(t, notInstalled("Sugar"))
	var mu sync.Mutex
	var events []downloader.EventType
	m.SetObserver(func(u Update) {
		mu.Lock()
		events = append(events, u.Event)
		mu.Unlock()
	})
	_ = m.RequestInstall(context.Background(), "Sugar", nil, "", nil)
	m.Stop(context.Background(), "Sugar")
	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != downloader.EventStart || events[1] != downloader.EventCancelled {
		t.Fatalf("events = %v", events)
	}
}

// TestDiskFullThroughBackend runs the full path against the fake CLI.
func TestDiskFullThroughBackend(t *testing.T) {
	r := seed(t, notInstalled("failgame"))
	cl := legendary.NewClient("legendary", time.Second)
	cmd, _ := legendarytest.Command(t)
	cl.SetCommandFunc(cmd)
	events := make(chan downloader.Event, 16)
	ad := legendarydl.NewAdapter(cl, downloader.NewChanReporter(events))
	m := New(quietLogger(), r, ad, events)
	m.Run()
	defer m.Shutdown()

	done := make(chan Outcome, 2)
	if err := m.RequestInstall(context.Background(), "failgame", nil, "", func(o Outcome) { done <- o }); err != nil {
		t.Fatalf("install: %v", err)
	}
	select {
	case o := <-done:
		if o.Result != Failed || o.Reason != "disk full" {
			t.Fatalf("outcome = %+v", o)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for outcome")
	}
	m.Stop(context.Background(), "failgame")
	select {
	case o := <-done:
		t.Fatalf("second outcome %+v", o)
	case <-time.After(100 * time.Millisecond):
	}
	got, _ := r.Get(context.Background(), "failgame")
	if got.Installed() {
		t.Fatalf("failed install marked installed")
	}
}
