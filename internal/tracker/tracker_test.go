package tracker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sdbooth/internal/adapters/storage/localfs"
	"sdbooth/internal/comfy"
	"sdbooth/internal/fanout"
	"sdbooth/internal/models"
	apperrors "sdbooth/internal/pkg/errors"
	"sdbooth/internal/pkg/logger"
	"sdbooth/internal/repositories"
)

type fakeRenderer struct {
	mu         sync.Mutex
	histories  map[string]string
	historyErr error
	files      map[string][]byte
	historyFor []string
	downloads  []string
}

func (f *fakeRenderer) GetHistory(ctx context.Context, promptID string) (comfy.History, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyFor = append(f.historyFor, promptID)
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	h, ok := f.histories[promptID]
	if !ok {
		return comfy.History(`{}`), nil
	}
	return comfy.History(h), nil
}

func (f *fakeRenderer) DownloadArtifact(ctx context.Context, filename string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, filename)
	data, ok := f.files[filename]
	if !ok {
		return nil, apperrors.New(apperrors.CodeUpstream, "render service http 404")
	}
	return data, nil
}

type upload struct {
	filename string
	data     []byte
}

type fakeArchiver struct {
	uploads []upload
	err     error
}

func (f *fakeArchiver) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	f.uploads = append(f.uploads, upload{filename: filename, data: data})
	if f.err != nil {
		return "", apperrors.WrapWithCode(f.err, apperrors.CodeArchive, "archive.upload", "upload failed")
	}
	return "https://archive.example/" + filename, nil
}

type recordingConn struct {
	mu      sync.Mutex
	msgs    [][]byte
	sendErr error
	closed  atomic.Bool
}

func (c *recordingConn) Send(ctx context.Context, msg []byte) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) Closed() bool { return c.closed.Load() }

func (c *recordingConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *recordingConn) payloads(t *testing.T) []fanout.ImagePayload {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []fanout.ImagePayload
	for _, m := range c.msgs {
		var p fanout.ImagePayload
		if err := json.Unmarshal(m, &p); err != nil {
			t.Fatalf("bad payload %s: %v", m, err)
		}
		out = append(out, p)
	}
	return out
}

func historyWith(promptID, filename string) string {
	return `{"` + promptID + `":{"outputs":{"9":{"images":[{"filename":"` + filename + `","subfolder":"","type":"output"}]}}}}`
}

type fixture struct {
	queue    *repositories.MemoryRenderQueue
	renderer *fakeRenderer
	archiver *fakeArchiver
	registry *fanout.Registry
	tracker  *Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		queue:    repositories.NewMemoryRenderQueue(),
		renderer: &fakeRenderer{histories: map[string]string{}, files: map[string][]byte{}},
		archiver: &fakeArchiver{},
		registry: fanout.NewRegistry(),
	}
	f.tracker = New(Deps{
		Queue:    f.queue,
		Renderer: f.renderer,
		Archiver: f.archiver,
		Registry: f.registry,
		Log:      logger.Discard(),
		NewID:    func() string { return "0f8e2a54-id-" },
	})
	return f
}

func (f *fixture) insert(t *testing.T, promptID string) {
	t.Helper()
	if err := f.queue.Insert(context.Background(), models.NewPendingJob("job-"+promptID, promptID, 0)); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func (f *fixture) status(t *testing.T, promptID string) models.JobStatus {
	t.Helper()
	jobs, _ := f.queue.List(context.Background(), "", 100)
	for _, j := range jobs {
		if j.PromptID == promptID {
			return j.Status
		}
	}
	t.Fatalf("job %s not found", promptID)
	return ""
}

func TestTickEmptyQueue(t *testing.T) {
	f := newFixture(t)
	if err := f.tracker.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(f.renderer.historyFor) != 0 {
		t.Errorf("expected no history calls, got %v", f.renderer.historyFor)
	}
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t)
	conn := &recordingConn{}
	f.registry.Register(conn)

	f.insert(t, "p123")
	f.renderer.histories["p123"] = historyWith("p123", "face.png")
	f.renderer.files["face.png"] = []byte("png-bytes")

	if err := f.tracker.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if len(f.archiver.uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(f.archiver.uploads))
	}
	up := f.archiver.uploads[0]
	if up.filename == "face.png" || !strings.HasSuffix(up.filename, "face.png") {
		t.Errorf("expected renamed filename ending in face.png, got %q", up.filename)
	}
	if string(up.data) != "png-bytes" {
		t.Errorf("uploaded %q", up.data)
	}

	payloads := conn.payloads(t)
	if len(payloads) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(payloads))
	}
	p := payloads[0]
	if p.Type != "image" {
		t.Errorf("type = %q", p.Type)
	}
	if p.URL == "" || p.URL != "https://archive.example/"+up.filename {
		t.Errorf("url %q does not match archiver result", p.URL)
	}
	if p.Filename != up.filename {
		t.Errorf("filename %q, want %q", p.Filename, up.filename)
	}
	if data, _ := base64.StdEncoding.DecodeString(p.Data); string(data) != "png-bytes" {
		t.Errorf("data = %q", data)
	}

	if got := f.status(t, "p123"); got != models.StatusSuccessful {
		t.Errorf("status = %s, want Successful", got)
	}

	// completed jobs are never picked up again
	if err := f.tracker.Tick(context.Background()); err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	if len(f.archiver.uploads) != 1 || len(conn.payloads(t)) != 1 {
		t.Error("completed job was processed twice")
	}
	if got := f.status(t, "p123"); got != models.StatusSuccessful {
		t.Errorf("status regressed to %s", got)
	}
}

func TestTickSelectsOldestOnly(t *testing.T) {
	f := newFixture(t)
	f.insert(t, "first")
	f.insert(t, "second")

	_ = f.tracker.Tick(context.Background())

	if len(f.renderer.historyFor) != 1 || f.renderer.historyFor[0] != "first" {
		t.Errorf("expected one history call for 'first', got %v", f.renderer.historyFor)
	}
}

func TestTickZeroImagesLeavesPending(t *testing.T) {
	f := newFixture(t)
	f.insert(t, "p1")
	f.renderer.histories["p1"] = `{"p1":{"outputs":{"9":{"images":[]}}}}`

	err := f.tracker.Tick(context.Background())
	if !apperrors.IsCode(err, apperrors.CodeNoOutput) {
		t.Errorf("expected no-output error, got %v", err)
	}
	if len(f.renderer.downloads) != 0 || len(f.archiver.uploads) != 0 {
		t.Error("nothing should be downloaded or uploaded")
	}
	if got := f.status(t, "p1"); got != models.StatusPending {
		t.Errorf("status = %s, want Pending", got)
	}
}

func TestTickStageFailuresLeavePending(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		wantCode apperrors.Code
	}{
		{
			name: "history unavailable",
			setup: func(f *fixture) {
				f.renderer.historyErr = apperrors.New(apperrors.CodeUpstream, "render service http 500")
			},
			wantCode: apperrors.CodeUpstream,
		},
		{
			name: "malformed history",
			setup: func(f *fixture) {
				f.renderer.histories["p1"] = `{"p1":{"status":"running"}}`
			},
			wantCode: apperrors.CodeMalformed,
		},
		{
			name: "download fails",
			setup: func(f *fixture) {
				f.renderer.histories["p1"] = historyWith("p1", "missing.png")
			},
			wantCode: apperrors.CodeUpstream,
		},
		{
			name: "archive fails",
			setup: func(f *fixture) {
				f.renderer.histories["p1"] = historyWith("p1", "face.png")
				f.renderer.files["face.png"] = []byte("x")
				f.archiver.err = errors.New("AccessDenied")
			},
			wantCode: apperrors.CodeArchive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			conn := &recordingConn{}
			f.registry.Register(conn)
			f.insert(t, "p1")
			tt.setup(f)

			err := f.tracker.Tick(context.Background())
			if !apperrors.IsCode(err, tt.wantCode) {
				t.Errorf("expected %s, got %v", tt.wantCode, err)
			}
			if got := f.status(t, "p1"); got != models.StatusPending {
				t.Errorf("status = %s, want Pending", got)
			}
			if len(conn.payloads(t)) != 0 {
				t.Error("nothing should be broadcast on failure")
			}
		})
	}
}

func TestTickDeliversToAllButDeadConnection(t *testing.T) {
	f := newFixture(t)
	live := []*recordingConn{{}, {}, {}}
	for _, c := range live {
		f.registry.Register(c)
	}
	dead := &recordingConn{sendErr: errors.New("connection reset")}
	f.registry.Register(dead)

	f.insert(t, "p1")
	f.renderer.histories["p1"] = historyWith("p1", "face.png")
	f.renderer.files["face.png"] = []byte("x")

	if err := f.tracker.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	for i, c := range live {
		if n := len(c.payloads(t)); n != 1 {
			t.Errorf("live conn %d got %d payloads", i, n)
		}
	}
	if f.registry.Len() != len(live) {
		t.Errorf("dead connection should be dropped, registry has %d", f.registry.Len())
	}
	if got := f.status(t, "p1"); got != models.StatusSuccessful {
		t.Errorf("status = %s, want Successful", got)
	}
}

func TestTickWritesLocalCopy(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	f.tracker.localCopy = localfs.New(dir, "")

	f.insert(t, "p1")
	f.renderer.histories["p1"] = historyWith("p1", "face.png")
	f.renderer.files["face.png"] = []byte("pixels")

	if err := f.tracker.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "0f8e2a54-id-face.png"))
	if err != nil {
		t.Fatalf("local copy missing: %v", err)
	}
	if string(data) != "pixels" {
		t.Errorf("local copy = %q", data)
	}
}

type denyLock struct{ calls atomic.Int32 }

func (d *denyLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	d.calls.Add(1)
	return nil, false, nil
}

func TestRunSkipsTicksWithoutLease(t *testing.T) {
	f := newFixture(t)
	lock := &denyLock{}
	f.tracker.lock = lock
	f.tracker.interval = 5 * time.Millisecond
	f.insert(t, "p1")

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	err := f.tracker.Run(ctx)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if lock.calls.Load() == 0 {
		t.Error("expected lease attempts")
	}
	if len(f.renderer.historyFor) != 0 {
		t.Error("no tick should run without the lease")
	}
}

func TestRunProcessesQueue(t *testing.T) {
	f := newFixture(t)
	f.tracker.interval = 5 * time.Millisecond
	f.insert(t, "a")
	f.insert(t, "b")
	for _, id := range []string{"a", "b"} {
		f.renderer.histories[id] = historyWith(id, id+".png")
		f.renderer.files[id+".png"] = []byte(id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.tracker.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		pending, _ := f.queue.List(context.Background(), models.StatusPending, 10)
		if len(pending) == 0 {
			break
		}
		select {
		case <-deadline:
			cancel()
			t.Fatalf("queue not drained, %d pending", len(pending))
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
