// Package tracker polls ComfyUI for finished renders of pending jobs,
// archives the result, pushes it to connected clients and marks the job done.
package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sdbooth/internal/comfy"
	"sdbooth/internal/fanout"
	"sdbooth/internal/lease"
	"sdbooth/internal/pkg/errors"
	"sdbooth/internal/pkg/logger"
	"sdbooth/internal/pkg/scheduler"
	"sdbooth/internal/ports"
	"sdbooth/internal/repositories"
)

const (
	DefaultInterval = time.Second
	// DefaultTickTimeout bounds one tick once it has started. It stays under
	// the shutdown grace period so a tick in flight can finish.
	DefaultTickTimeout = 25 * time.Second
)

// RenderClient is the read side of the render service the tracker needs.
type RenderClient interface {
	GetHistory(ctx context.Context, promptID string) (comfy.History, error)
	DownloadArtifact(ctx context.Context, filename string) ([]byte, error)
}

// Uploader archives an artifact and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename string) (string, error)
}

type Deps struct {
	Queue    repositories.RenderQueue
	Renderer RenderClient
	Archiver Uploader
	Registry *fanout.Registry
	// LocalCopy, when set, receives a best-effort copy of every artifact.
	LocalCopy ports.StorageProvider
	Lock      lease.Locker
	Interval  time.Duration
	// TickTimeout bounds a started tick. Defaults to DefaultTickTimeout.
	TickTimeout time.Duration
	Log         *logger.Logger
	// NewID prefixes renamed artifacts. Defaults to uuid.NewString.
	NewID func() string
}

type Tracker struct {
	queue     repositories.RenderQueue
	renderer  RenderClient
	archiver  Uploader
	registry  *fanout.Registry
	localCopy ports.StorageProvider
	lock      lease.Locker
	interval  time.Duration
	timeout   time.Duration
	log       *logger.Logger
	newID     func() string
}

func New(d Deps) *Tracker {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	t := &Tracker{
		queue:     d.Queue,
		renderer:  d.Renderer,
		archiver:  d.Archiver,
		registry:  d.Registry,
		localCopy: d.LocalCopy,
		lock:      d.Lock,
		interval:  d.Interval,
		timeout:   d.TickTimeout,
		log:       log.WithComponent("tracker"),
		newID:     d.NewID,
	}
	if t.lock == nil {
		t.lock = lease.Noop{}
	}
	if t.interval <= 0 {
		t.interval = DefaultInterval
	}
	if t.timeout <= 0 {
		t.timeout = DefaultTickTimeout
	}
	if t.newID == nil {
		t.newID = uuid.NewString
	}
	if t.registry == nil {
		t.registry = fanout.NewRegistry()
	}
	return t
}

// Run ticks until ctx is canceled. Failed ticks are logged and retried on
// the next tick; only cancellation ends the loop, and only between ticks.
func (t *Tracker) Run(ctx context.Context) error {
	t.log.Info("render tracker started", "interval", t.interval.String())
	err := scheduler.Every(ctx, t.interval, t.runTick)
	t.log.Info("render tracker stopped")
	return err
}

// runTick detaches the tick from ctx: once clients may have received an
// artifact, the status update must land even if shutdown has begun.
func (t *Tracker) runTick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	defer cancel()

	release, ok, err := t.lock.TryAcquire(ctx)
	if err != nil {
		t.log.Warn("tick lease unavailable", "error", err.Error())
		return
	}
	if !ok {
		t.log.Debug("tick lease held elsewhere")
		return
	}
	defer release()

	if err := t.Tick(ctx); err != nil {
		t.logTickError(ctx, err)
	}
}

func (t *Tracker) logTickError(ctx context.Context, err error) {
	var appErr *errors.Error
	fields := []any{"code", string(errors.GetCode(err))}
	if errors.As(err, &appErr) {
		fields = append(fields, "op", appErr.Op)
		for k, v := range appErr.Fields {
			fields = append(fields, k, v)
		}
	}

	switch errors.GetCode(err) {
	case errors.CodeNoOutput:
		t.log.WithError(err).Debug("render not finished yet", fields...)
	case errors.CodeUpstream, errors.CodeMalformed, errors.CodeArchive:
		t.log.WithError(err).Warn("tick failed, job stays pending", fields...)
	default:
		t.log.LogError(ctx, "tick failed", err, fields...)
	}
}
