package repositories

import (
	"context"
	"sync"

	"sdbooth/internal/models"
)

// MemoryRenderQueue is an in-process RenderQueue. Slice order is insertion order.
type MemoryRenderQueue struct {
	mu   sync.Mutex
	jobs []models.RenderJob
}

func NewMemoryRenderQueue() *MemoryRenderQueue {
	return &MemoryRenderQueue{}
}

func (m *MemoryRenderQueue) FindPendingOldest(ctx context.Context) (*models.RenderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.Status == models.StatusPending {
			found := j
			return &found, nil
		}
	}
	return nil, ErrNoPendingJob
}

func (m *MemoryRenderQueue) Insert(ctx context.Context, job *models.RenderJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, *job)
	return nil
}

func (m *MemoryRenderQueue) UpdateStatusByExternalID(ctx context.Context, promptID string, status models.JobStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for i := range m.jobs {
		if m.jobs[i].PromptID == promptID && m.jobs[i].Status.CanTransition(status) {
			m.jobs[i].Status = status
			n++
		}
	}
	return n, nil
}

func (m *MemoryRenderQueue) ClearAll(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.jobs))
	m.jobs = nil
	return n, nil
}

func (m *MemoryRenderQueue) List(ctx context.Context, status models.JobStatus, limit int) ([]models.RenderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.RenderJob, 0, len(m.jobs))
	for i := len(m.jobs) - 1; i >= 0 && len(out) < limit; i-- {
		if status == "" || m.jobs[i].Status == status {
			out = append(out, m.jobs[i])
		}
	}
	return out, nil
}

// MemoryTemplateStore is an in-process TemplateStore.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	portraits []models.Portrait
}

func NewMemoryTemplateStore(portraits ...models.Portrait) *MemoryTemplateStore {
	return &MemoryTemplateStore{portraits: portraits}
}

func (m *MemoryTemplateStore) FindTemplatesBySex(ctx context.Context, sex string) ([]models.Portrait, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Portrait
	for _, p := range m.portraits {
		if p.Sex == sex {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryTemplateStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.portraits), nil
}

func (m *MemoryTemplateStore) InsertMany(ctx context.Context, portraits []models.Portrait) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portraits = append(m.portraits, portraits...)
	return nil
}
