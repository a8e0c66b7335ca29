package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/voiceforge/api/internal/model"
)

var (
	// ErrJobNotFound is returned when no snapshot exists for a job ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrVersionConflict is returned when another writer persisted a newer
	// snapshot between the caller's read and its update.
	ErrVersionConflict = errors.New("snapshot version conflict")
)

const (
	jobKeyPrefix = "stemjob:"
	historySufix = ":history"
	jobRetention = 7 * 24 * time.Hour
)

// SnapshotStore persists StemJobState records in Redis. The current record
// for a job lives at stemjob:<id> and carries a version number; updates are
// optimistic and refuse to overwrite a version they did not read. Every
// accepted write is also appended to stemjob:<id>:history as an audit trail.
type SnapshotStore struct {
	redis *redis.Client
}

func NewSnapshotStore(redisClient *redis.Client) *SnapshotStore {
	return &SnapshotStore{redis: redisClient}
}

func jobKey(jobID string) string     { return jobKeyPrefix + jobID }
func historyKey(jobID string) string { return jobKey(jobID) + historySufix }

// Create persists the initial snapshot of a new job
func (s *SnapshotStore) Create(ctx context.Context, st *model.StemJobState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ok, err := s.redis.SetNX(ctx, jobKey(st.JobID), data, jobRetention).Result()
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	if !ok {
		return fmt.Errorf("job %s already exists", st.JobID)
	}

	s.redis.RPush(ctx, historyKey(st.JobID), data)
	s.redis.Expire(ctx, historyKey(st.JobID), jobRetention)
	return nil
}

// Get returns the current snapshot of a job
func (s *SnapshotStore) Get(ctx context.Context, jobID string) (*model.StemJobState, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	var st model.StemJobState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &st, nil
}

// Update persists st as the next snapshot of its job. The write succeeds only
// if the stored version still matches st.Version, closing the race where two
// concurrent advance calls both read "sub-job not dispatched" and would both
// dispatch. On success st.Version and st.UpdatedAt are refreshed in place.
func (s *SnapshotStore) Update(ctx context.Context, st *model.StemJobState) error {
	key := jobKey(st.JobID)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrJobNotFound
		}
		if err != nil {
			return err
		}

		var current model.StemJobState
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}
		if current.Version != st.Version {
			return ErrVersionConflict
		}

		st.Version++
		st.UpdatedAt = time.Now().UTC()

		next, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, jobRetention)
			pipe.RPush(ctx, historyKey(st.JobID), next)
			pipe.Expire(ctx, historyKey(st.JobID), jobRetention)
			return nil
		})
		return err
	}, key)

	if err == redis.TxFailedErr {
		return ErrVersionConflict
	}
	return err
}

// History returns every snapshot of a job in write order
func (s *SnapshotStore) History(ctx context.Context, jobID string) ([]*model.StemJobState, error) {
	entries, err := s.redis.LRange(ctx, historyKey(jobID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrJobNotFound
	}

	snapshots := make([]*model.StemJobState, 0, len(entries))
	for _, entry := range entries {
		var st model.StemJobState
		if err := json.Unmarshal([]byte(entry), &st); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
		}
		snapshots = append(snapshots, &st)
	}
	return snapshots, nil
}

// Each iterates over all current job snapshots. Used by the stale-job
// sweeper; not part of the request path.
func (s *SnapshotStore) Each(ctx context.Context, fn func(*model.StemJobState) error) error {
	iter := s.redis.Scan(ctx, 0, jobKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, historySufix) {
			continue
		}

		st, err := s.Get(ctx, strings.TrimPrefix(key, jobKeyPrefix))
		if err != nil {
			if errors.Is(err, ErrJobNotFound) {
				continue // expired between scan and read
			}
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
	}
	return iter.Err()
}
