package tracker

import (
	"bytes"
	"context"

	"sdbooth/internal/fanout"
	"sdbooth/internal/models"
	"sdbooth/internal/pkg/errors"
	"sdbooth/internal/pkg/logger"
	"sdbooth/internal/ports"
	"sdbooth/internal/repositories"
)

// Tick advances at most one job: the oldest Pending one. It returns nil when
// the queue has nothing pending or the job completed, and a coded error when
// a stage stopped early. The job stays Pending in every error case.
func (t *Tracker) Tick(ctx context.Context) error {
	job, err := t.queue.FindPendingOldest(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrNoPendingJob) {
			return nil
		}
		return errors.Wrap(err, "tracker.select", "cannot read render queue")
	}

	ctx = logger.ContextWithPromptID(ctx, job.PromptID)
	log := t.log.FromContext(ctx)

	history, err := t.renderer.GetHistory(ctx, job.PromptID)
	if err != nil {
		return errors.Wrap(err, "tracker.history", "history unavailable")
	}

	filename, err := history.FirstOutputImage()
	if err != nil {
		return errors.Wrap(err, "tracker.parse", "no usable output").
			WithField("prompt_id", job.PromptID)
	}
	log.Info("render output found", "filename", filename)

	data, err := t.renderer.DownloadArtifact(ctx, filename)
	if err != nil {
		return errors.Wrap(err, "tracker.download", "artifact download failed").
			WithField("filename", filename)
	}

	renamed := t.newID() + filename
	t.saveLocalCopy(ctx, log, renamed, data)

	url, err := t.archiver.Upload(ctx, data, renamed)
	if err != nil {
		return errors.Wrap(err, "tracker.archive", "archive failed").
			WithField("filename", renamed)
	}
	log.Info("artifact archived", "filename", renamed, "url", url)

	msg, err := fanout.NewImagePayload(url, renamed, data).Encode()
	if err != nil {
		return errors.Wrap(err, "tracker.broadcast", "encode payload")
	}
	deliveries := fanout.Broadcast(ctx, t.registry, msg, log)
	log.Info("result broadcast",
		"recipients", len(deliveries),
		"failed", fanout.Failed(deliveries),
	)

	n, err := t.queue.UpdateStatusByExternalID(ctx, job.PromptID, models.StatusSuccessful)
	if err != nil {
		return errors.Wrap(err, "tracker.complete", "status update failed")
	}
	if n == 0 {
		log.Warn("job left the queue before completion")
		return nil
	}
	log.Info("render job completed", "status", string(models.StatusSuccessful))
	return nil
}

func (t *Tracker) saveLocalCopy(ctx context.Context, log *logger.Logger, filename string, data []byte) {
	if t.localCopy == nil {
		return
	}
	_, err := t.localCopy.PutObject(ctx, ports.PutObjectInput{
		ObjectKey: filename,
		Reader:    bytes.NewReader(data),
		Size:      int64(len(data)),
	})
	if err != nil {
		log.Warn("local copy failed", "filename", filename, "error", err.Error())
	}
}
