package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrFailureNotFound = errors.New("failure record not found")

const failureKeyPrefix = "failure/"

// FailureRecord keeps what an operator needs to triage a failed job.
type FailureRecord struct {
	JobId        uuid.UUID `json:"jobId"`
	Kind         string    `json:"kind"`
	Error        string    `json:"error"`
	EngineStderr string    `json:"engineStderr,omitempty"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

type FailureJournal interface {
	Record(ctx context.Context, record FailureRecord) error
	Get(ctx context.Context, jobId uuid.UUID) (*FailureRecord, error)
	List(ctx context.Context) ([]FailureRecord, error)
	Close() error
}

type pebbleJournal struct {
	db *pebble.DB
}

// OpenFailureJournal opens the journal at dir. A nil fs uses the OS
// filesystem.
func OpenFailureJournal(dir string, fs vfs.FS) (FailureJournal, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open failure journal: %w", err)
	}
	return &pebbleJournal{db: db}, nil
}

func failureKey(jobId uuid.UUID) []byte {
	return []byte(failureKeyPrefix + jobId.String())
}

func (j *pebbleJournal) Record(ctx context.Context, record FailureRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal failure record: %w", err)
	}
	if err := j.db.Set(failureKey(record.JobId), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to store failure record: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("job_id", record.JobId.String()).Str("kind", record.Kind).Msg("failure recorded")
	return nil
}

func (j *pebbleJournal) Get(ctx context.Context, jobId uuid.UUID) (*FailureRecord, error) {
	data, closer, err := j.db.Get(failureKey(jobId))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrFailureNotFound, jobId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}
	defer closer.Close()

	var record FailureRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failure record: %w", err)
	}
	return &record, nil
}

// List returns every record, newest first.
func (j *pebbleJournal) List(ctx context.Context) ([]FailureRecord, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(failureKeyPrefix),
		UpperBound: []byte(failureKeyPrefix[:len(failureKeyPrefix)-1] + "0"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var records []FailureRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var record FailureRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Bytes("key", iter.Key()).Msg("skipping unreadable failure record")
			continue
		}
		records = append(records, record)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(a, b int) bool {
		return records[a].Timestamp.After(records[b].Timestamp)
	})
	return records, nil
}

func (j *pebbleJournal) Close() error {
	return j.db.Close()
}
