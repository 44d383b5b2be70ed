// Package submission turns an uploaded user photo into queued render jobs,
// one per portrait template of the chosen sex.
package submission

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"sdbooth/internal/comfy"
	"sdbooth/internal/models"
	"sdbooth/internal/pkg/errors"
	"sdbooth/internal/pkg/logger"
	"sdbooth/internal/repositories"
)

// PromptQueuer submits a workflow to the render service.
type PromptQueuer interface {
	QueuePrompt(ctx context.Context, wf comfy.Workflow) (comfy.PromptResponse, error)
}

type QueuedJob struct {
	Template string `json:"template"`
	PromptID string `json:"prompt_id"`
	Number   int    `json:"number"`
}

type ProcessResult struct {
	Queued  []QueuedJob `json:"queued"`
	Skipped []string    `json:"skipped,omitempty"`
}

type Service struct {
	templates repositories.TemplateStore
	queue     repositories.RenderQueue
	renderer  PromptQueuer
	log       *logger.Logger
}

func NewService(templates repositories.TemplateStore, queue repositories.RenderQueue, renderer PromptQueuer, log *logger.Logger) *Service {
	return &Service{
		templates: templates,
		queue:     queue,
		renderer:  renderer,
		log:       log.WithComponent("submission"),
	}
}

// NormalizeSex maps case variants of female/male to the stored form.
func NormalizeSex(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "female":
		return "Female"
	case "male":
		return "Male"
	default:
		return strings.TrimSpace(s)
	}
}

// Process queues one prompt per template of gender and records each as a
// Pending job. Templates with an unknown function type are skipped. When the
// render service rejects a prompt, processing stops; jobs queued before that
// stay queued and are returned along with the error.
func (s *Service) Process(ctx context.Context, userImageName, gender string) (ProcessResult, error) {
	result := ProcessResult{Queued: []QueuedJob{}}

	userImageName = strings.TrimSpace(userImageName)
	if userImageName == "" {
		return result, errors.ValidationField("userImageName", "userImageName is required")
	}
	sex := NormalizeSex(gender)
	if sex == "" {
		return result, errors.ValidationField("gender", "gender is required")
	}

	log := s.log.FromContext(ctx).WithFields(map[string]any{"gender": sex, "user_image": userImageName})

	portraits, err := s.templates.FindTemplatesBySex(ctx, sex)
	if err != nil {
		return result, errors.Wrap(err, "submission.templates", "cannot load templates")
	}
	if len(portraits) == 0 {
		log.Warn("no templates for gender")
		return result, nil
	}

	for _, p := range portraits {
		wf, ok := comfy.WorkflowFor(p, userImageName)
		if !ok {
			log.Warn("skipping template with unknown function type",
				"template", p.Image,
				"type", string(p.TypeOfFunction),
			)
			result.Skipped = append(result.Skipped, p.Image)
			continue
		}

		res, err := s.renderer.QueuePrompt(ctx, wf)
		if err != nil {
			return result, errors.Wrap(err, "submission.queue", "render service rejected prompt").
				WithField("template", p.Image)
		}

		job := models.NewPendingJob(uuid.NewString(), res.PromptID, res.Number)
		if err := s.queue.Insert(ctx, job); err != nil {
			return result, errors.Wrap(err, "submission.insert", "cannot record render job").
				WithField("prompt_id", res.PromptID)
		}

		log.Info("render job queued", "template", p.Image, "prompt_id", res.PromptID, "number", res.Number)
		result.Queued = append(result.Queued, QueuedJob{Template: p.Image, PromptID: res.PromptID, Number: res.Number})
	}

	return result, nil
}

// ClearQueue removes every job record. Clearing an empty queue is fine.
func (s *Service) ClearQueue(ctx context.Context) (int64, error) {
	n, err := s.queue.ClearAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "submission.clear", "cannot clear render queue")
	}
	s.log.FromContext(ctx).Info("render queue cleared", "removed", n)
	return n, nil
}
