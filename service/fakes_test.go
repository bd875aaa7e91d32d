package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"video-branding-worker/constant"
	"video-branding-worker/dto"
	"video-branding-worker/entities"
	"video-branding-worker/pkg/ffmpeg"
	"video-branding-worker/repository"
)

type fakeRepo struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*entities.Job
	history map[uuid.UUID][]constant.JobStatus
	findErr error

	markFailedErr   error
	markFailedCalls int
}

func newFakeRepo(jobs ...*entities.Job) *fakeRepo {
	r := &fakeRepo{jobs: map[uuid.UUID]*entities.Job{}, history: map[uuid.UUID][]constant.JobStatus{}}
	for _, j := range jobs {
		r.jobs[j.ID] = j
		r.history[j.ID] = []constant.JobStatus{j.Status}
	}
	return r
}

func (r *fakeRepo) GetDB() *gorm.DB { return nil }

func (r *fakeRepo) Migrate(ctx context.Context) error { return nil }

func (r *fakeRepo) FindJobById(ctx context.Context, id uuid.UUID) (*entities.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	j, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrJobNotFound, id)
	}
	cp := *j
	return &cp, nil
}

func (r *fakeRepo) CreateJob(ctx context.Context, job *entities.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	r.history[job.ID] = []constant.JobStatus{job.Status}
	return nil
}

func (r *fakeRepo) move(id uuid.UUID, to constant.JobStatus, apply func(*entities.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return repository.ErrJobNotFound
	}
	if !entities.CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, j.Status, to)
	}
	cp := *j
	cp.Status = to
	apply(&cp)
	if err := cp.Validate(); err != nil {
		return err
	}
	r.jobs[id] = &cp
	r.history[id] = append(r.history[id], to)
	return nil
}

func (r *fakeRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.move(id, constant.JobStatusProcessing, func(*entities.Job) {})
}

func (r *fakeRepo) MarkCompleted(ctx context.Context, id uuid.UUID, outputRef string) error {
	return r.move(id, constant.JobStatusCompleted, func(j *entities.Job) {
		j.OutputRef = &outputRef
		j.ErrorMessage = nil
	})
}

func (r *fakeRepo) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	r.mu.Lock()
	r.markFailedCalls++
	failErr := r.markFailedErr
	r.mu.Unlock()
	if failErr != nil {
		return failErr
	}
	return r.move(id, constant.JobStatusFailed, func(j *entities.Job) {
		j.OutputRef = nil
		j.ErrorMessage = &errorMessage
	})
}

func (r *fakeRepo) job(id uuid.UUID) entities.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.jobs[id]
}

type fakeJournal struct {
	mu      sync.Mutex
	records []repository.FailureRecord
}

func (j *fakeJournal) Record(ctx context.Context, record repository.FailureRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, record)
	return nil
}

func (j *fakeJournal) Get(ctx context.Context, id uuid.UUID) (*repository.FailureRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.records {
		if j.records[i].JobId == id {
			rec := j.records[i]
			return &rec, nil
		}
	}
	return nil, repository.ErrFailureNotFound
}

func (j *fakeJournal) List(ctx context.Context) ([]repository.FailureRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]repository.FailureRecord(nil), j.records...), nil
}

func (j *fakeJournal) Close() error { return nil }

type fakeInspector struct {
	desc  dto.MediaDescriptor
	err   error
	calls int
}

func (f *fakeInspector) Inspect(ctx context.Context, path string) (dto.MediaDescriptor, error) {
	f.calls++
	if f.err != nil {
		return dto.MediaDescriptor{}, f.err
	}
	if _, err := os.Stat(path); err != nil {
		return dto.MediaDescriptor{}, err
	}
	return f.desc, nil
}

// fakeTranscoder writes a placeholder artifact unless err is set. block makes
// Run wait for context cancellation.
type fakeTranscoder struct {
	err   error
	block bool
	calls int
	jobs  []ffmpeg.Job
}

func (f *fakeTranscoder) Run(ctx context.Context, job ffmpeg.Job, onProgress ffmpeg.ProgressFunc) (ffmpeg.Result, error) {
	f.calls++
	f.jobs = append(f.jobs, job)
	if f.block {
		<-ctx.Done()
		return ffmpeg.Result{}, ctx.Err()
	}
	if f.err != nil {
		return ffmpeg.Result{}, f.err
	}
	if onProgress != nil {
		for _, p := range []int{3, 10, 12, 50, 100} {
			onProgress(ffmpeg.Progress{Percent: p})
		}
	}
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return ffmpeg.Result{}, err
	}
	if err := os.WriteFile(job.OutputPath, []byte("branded"), 0o644); err != nil {
		return ffmpeg.Result{}, err
	}
	return ffmpeg.Result{OutputPath: job.OutputPath}, nil
}

type failingStore struct{}

func (failingStore) Put(ctx context.Context, key, localPath, contentType string) (string, error) {
	return "", errors.New("bucket unreachable")
}

func (failingStore) Close() error { return nil }

// fakeQueue records published messages. deliver, when set, runs as the
// broker handing the message to a worker before Publish returns.
type fakeQueue struct {
	err      error
	deliver  func(ctx context.Context, message dto.JobMessage)
	messages []dto.JobMessage
}

func (q *fakeQueue) Publish(ctx context.Context, message dto.JobMessage) error {
	if q.err != nil {
		return q.err
	}
	if q.deliver != nil {
		q.deliver(ctx, message)
	}
	q.messages = append(q.messages, message)
	return nil
}
