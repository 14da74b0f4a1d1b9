package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/energyexe/harmonizer/pkg/redis"
)

// Checkpoint records how far a batch run got. It is written after every
// committed period, so a crashed or interrupted run can resume from the
// day after last_successful_date.
type Checkpoint struct {
	LastSuccessfulDate string `json:"last_successful_date"`
	Timestamp          string `json:"timestamp"`
	Source             string `json:"source"`
	ProcessedDays      int    `json:"processed_days"`
	FailedDays         int    `json:"failed_days"`
}

// LastDate parses the checkpoint date.
func (c *Checkpoint) LastDate() (time.Time, error) {
	return time.ParseInLocation("2006-01-02", c.LastSuccessfulDate, time.UTC)
}

// CheckpointStore persists checkpoints. Load returns (nil, nil) when no
// checkpoint exists yet.
type CheckpointStore interface {
	Load(ctx context.Context) (*Checkpoint, error)
	Save(ctx context.Context, cp Checkpoint) error
	Clear(ctx context.Context) error
}

// checkpointKey names a checkpoint after the run's range and source so
// two overlapping runs never clobber each other's progress.
func checkpointKey(start, end time.Time, source string) string {
	suffix := "_all"
	if source != "" {
		suffix = "_" + source
	}
	return fmt.Sprintf("checkpoint_%s_%s%s",
		start.Format("20060102"), end.Format("20060102"), suffix)
}

// FileCheckpointStore keeps the checkpoint as a JSON file in the log
// directory.
type FileCheckpointStore struct {
	path string
}

// NewFileCheckpointStore creates a file-backed store for one run scope.
func NewFileCheckpointStore(logDir string, start, end time.Time, source string) (*FileCheckpointStore, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &FileCheckpointStore{
		path: filepath.Join(logDir, checkpointKey(start, end, source)+".json"),
	}, nil
}

// Path returns the checkpoint file location.
func (s *FileCheckpointStore) Path() string { return s.path }

func (s *FileCheckpointStore) Load(_ context.Context) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", s.path, err)
	}
	return &cp, nil
}

func (s *FileCheckpointStore) Save(_ context.Context, cp Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileCheckpointStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// RedisCheckpointStore keeps checkpoints in Redis so several hosts can
// share batch progress. Entries expire after 30 days.
type RedisCheckpointStore struct {
	rdb *goredis.Client
	key string
}

const redisCheckpointTTL = 30 * 24 * time.Hour

// NewRedisCheckpointStore creates a Redis-backed store for one run scope.
func NewRedisCheckpointStore(client *redis.Client, start, end time.Time, source string) *RedisCheckpointStore {
	return &RedisCheckpointStore{
		rdb: client.Redis(),
		key: "harmonizer:" + checkpointKey(start, end, source),
	}
}

func (s *RedisCheckpointStore) Load(ctx context.Context) (*Checkpoint, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint from redis: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", s.key, err)
	}
	return &cp, nil
}

func (s *RedisCheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key, data, redisCheckpointTTL).Err()
}

func (s *RedisCheckpointStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

// MemoryCheckpointStore is an in-memory store for tests.
type MemoryCheckpointStore struct {
	cp *Checkpoint
}

// NewMemoryCheckpointStore creates an empty in-memory store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{}
}

func (s *MemoryCheckpointStore) Load(_ context.Context) (*Checkpoint, error) {
	return s.cp, nil
}

func (s *MemoryCheckpointStore) Save(_ context.Context, cp Checkpoint) error {
	s.cp = &cp
	return nil
}

func (s *MemoryCheckpointStore) Clear(_ context.Context) error {
	s.cp = nil
	return nil
}
