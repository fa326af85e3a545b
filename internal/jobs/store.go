package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DaphneDana/Matlab-app/internal/simulator"
)

const (
	jobKeyPrefix = "analysis:job:"

	maxUpdateRetries = 10
)

// Store はジョブ状態を保持します。存在しない場合 Get は nil, nil を返します。
type Store interface {
	Get(ctx context.Context, jobID string) (*Record, error)
	Upsert(ctx context.Context, record *Record) error
	UpdateProgress(ctx context.Context, jobID string, progress ProgressInfo) error
	MarkDone(ctx context.Context, jobID string, resultID string) error
	MarkCancelled(ctx context.Context, jobID string) error
	Delete(ctx context.Context, jobID string) error
}

// RedisStore はジョブ状態を Redis に保存します。値は TTL 付きで、期限切れとともに破棄されます。
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore は RedisStore を作成します。
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		ttl: ttl,
		now: time.Now,
	}
}

// Get はジョブ情報を取得します。
func (s *RedisStore) Get(ctx context.Context, jobID string) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parse job record: %w", err)
	}
	return &record, nil
}

// Upsert はジョブ情報を保存します（存在しない場合は作成）。
func (s *RedisStore) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if record.JobID == "" {
		return fmt.Errorf("record.JobID is required")
	}
	stampRecord(record, s.now().UTC(), s.ttl)

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, jobKey(record.JobID), payload, s.ttl).Err()
}

// UpdateProgress は実行中のジョブの進捗を更新します。
func (s *RedisStore) UpdateProgress(ctx context.Context, jobID string, progress ProgressInfo) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		applyProgress(record, progress)
	})
}

// MarkDone はジョブ完了時の情報を保存します。
func (s *RedisStore) MarkDone(ctx context.Context, jobID string, resultID string) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		applyDone(record, resultID)
	})
}

// MarkCancelled はジョブが画面の破棄により中断されたことを保存します。
func (s *RedisStore) MarkCancelled(ctx context.Context, jobID string) error {
	return s.updatePartial(ctx, jobID, applyCancelled)
}

// Delete はジョブ情報を削除します。
func (s *RedisStore) Delete(ctx context.Context, jobID string) error {
	return s.rdb.Del(ctx, jobKey(jobID)).Err()
}

func (s *RedisStore) updatePartial(ctx context.Context, jobID string, mutate func(*Record)) error {
	key := jobKey(jobID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
			}
			return err
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("parse job record: %w", err)
		}
		mutate(&record)
		now := s.now().UTC()
		record.UpdatedAt = now
		if s.ttl > 0 {
			record.ExpiresAt = now.Add(s.ttl)
		}
		payload, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update job %s: too many concurrent updates", jobID)
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

// MemoryStore はプロセス内にジョブ状態を保持します。
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[string]Record
}

// NewMemoryStore は MemoryStore を作成します。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]Record),
	}
}

// Get はジョブ情報を取得します。期限切れのものは削除して nil を返します。
func (s *MemoryStore) Get(_ context.Context, jobID string) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.lookupLocked(jobID)
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// Upsert はジョブ情報を保存します。
func (s *MemoryStore) Upsert(_ context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if record.JobID == "" {
		return fmt.Errorf("record.JobID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stampRecord(record, s.now().UTC(), s.ttl)
	s.records[record.JobID] = cloneRecord(*record)
	return nil
}

// UpdateProgress は実行中のジョブの進捗を更新します。
func (s *MemoryStore) UpdateProgress(_ context.Context, jobID string, progress ProgressInfo) error {
	return s.update(jobID, func(record *Record) { applyProgress(record, progress) })
}

// MarkDone はジョブ完了時の情報を保存します。
func (s *MemoryStore) MarkDone(_ context.Context, jobID string, resultID string) error {
	return s.update(jobID, func(record *Record) { applyDone(record, resultID) })
}

// MarkCancelled はジョブの中断を保存します。
func (s *MemoryStore) MarkCancelled(_ context.Context, jobID string) error {
	return s.update(jobID, applyCancelled)
}

// Delete はジョブ情報を削除します。
func (s *MemoryStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, jobID)
	return nil
}

func (s *MemoryStore) update(jobID string, mutate func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.lookupLocked(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	mutate(&record)
	now := s.now().UTC()
	record.UpdatedAt = now
	if s.ttl > 0 {
		record.ExpiresAt = now.Add(s.ttl)
	}
	s.records[jobID] = record
	return nil
}

func (s *MemoryStore) lookupLocked(jobID string) (Record, bool) {
	record, ok := s.records[jobID]
	if !ok {
		return Record{}, false
	}
	if !record.ExpiresAt.IsZero() && s.now().After(record.ExpiresAt) {
		delete(s.records, jobID)
		return Record{}, false
	}
	return cloneRecord(record), true
}

func cloneRecord(r Record) Record {
	if r.Input.Files != nil {
		r.Input.Files = append([]string(nil), r.Input.Files...)
	}
	return r
}

func stampRecord(record *Record, now time.Time, ttl time.Duration) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.ExpiresAt.IsZero() && ttl > 0 {
		record.ExpiresAt = record.CreatedAt.Add(ttl)
	}
}

// 中断・完了後に届いた進捗は捨てます。進捗は減らしません。
func applyProgress(record *Record, progress ProgressInfo) {
	if record.Status != StatusRunning {
		return
	}
	if progress.Percent < record.Progress.Percent {
		return
	}
	record.Progress = progress
}

func applyDone(record *Record, resultID string) {
	if record.Status != StatusRunning {
		return
	}
	record.Status = StatusSucceeded
	record.Progress = ProgressInfo{
		Percent: simulator.MaxProgress,
		Phase:   simulator.PhaseComplete,
		Message: simulator.PhaseComplete.Caption(),
	}
	record.ResultID = resultID
}

func applyCancelled(record *Record) {
	if record.Status != StatusRunning {
		return
	}
	record.Status = StatusCancelled
}
