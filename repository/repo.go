package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"video-branding-worker/constant"
	"video-branding-worker/entities"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

type JobRepository interface {
	GetDB() *gorm.DB
	Migrate(ctx context.Context) error
	FindJobById(ctx context.Context, id uuid.UUID) (*entities.Job, error)
	CreateJob(ctx context.Context, job *entities.Job) error
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, outputRef string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB, logLevel logger.LogLevel) (JobRepository, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logLevel),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return &repo{
		db: gormDB,
	}, nil
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Migrate(ctx context.Context) error {
	return r.GetDB().WithContext(ctx).AutoMigrate(&entities.Job{})
}

func (r *repo) FindJobById(ctx context.Context, id uuid.UUID) (*entities.Job, error) {
	job := &entities.Job{}
	err := r.GetDB().WithContext(ctx).First(job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	return job, nil
}

func (r *repo) CreateJob(ctx context.Context, job *entities.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = constant.JobStatusPending
	}
	if err := job.Validate(); err != nil {
		return err
	}
	return r.GetDB().WithContext(ctx).Create(job).Error
}

func (r *repo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id, constant.JobStatusProcessing, map[string]interface{}{})
}

func (r *repo) MarkCompleted(ctx context.Context, id uuid.UUID, outputRef string) error {
	if outputRef == "" {
		return fmt.Errorf("job %s: completed without output ref", id)
	}
	return r.transition(ctx, id, constant.JobStatusCompleted, map[string]interface{}{
		"output_ref":    outputRef,
		"error_message": nil,
	})
}

func (r *repo) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return r.transition(ctx, id, constant.JobStatusFailed, map[string]interface{}{
		"output_ref":    nil,
		"error_message": errorMessage,
	})
}

// transition applies updates only when the stored status is a legal
// predecessor of to, so concurrent writers cannot skip a state.
func (r *repo) transition(ctx context.Context, id uuid.UUID, to constant.JobStatus, updates map[string]interface{}) error {
	res := transitionQuery(r.GetDB().WithContext(ctx), id, to, updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	job, err := r.FindJobById(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s for job %s", ErrInvalidTransition, job.Status, to, id)
}

func transitionQuery(tx *gorm.DB, id uuid.UUID, to constant.JobStatus, updates map[string]interface{}) *gorm.DB {
	from := make([]string, 0, 2)
	for _, s := range entities.Predecessors(to) {
		from = append(from, s.String())
	}
	values := make(map[string]interface{}, len(updates)+2)
	for k, v := range updates {
		values[k] = v
	}
	values["status"] = to.String()
	values["updated_at"] = time.Now()

	return tx.Model(&entities.Job{}).Where("id = ? AND status IN ?", id, from).Updates(values)
}
