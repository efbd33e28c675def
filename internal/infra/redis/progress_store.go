package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aura-trainer-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ProgressStore keeps per-user progress in a Redis hash: one field per
// lesson id holding the JSON LessonProgress record. The star total is
// recomputed from the hash on every read, so it can never drift from the
// per-lesson records.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	return &ProgressStore{client: client, ttl: ttl}
}

func (s *ProgressStore) Progress(ctx context.Context, userID string) (domain.UserProgress, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("read progress: %w", err)
	}
	progress := domain.NewUserProgress()
	for lessonID, raw := range fields {
		var lp domain.LessonProgress
		if err := json.Unmarshal([]byte(raw), &lp); err != nil {
			continue
		}
		progress.Lessons[lessonID] = lp
		progress.TotalStars += lp.Stars
	}
	return progress, nil
}

// SaveLessonResult applies the ratchet inside a WATCH transaction so two
// concurrent finishes for the same user cannot regress each other.
func (s *ProgressStore) SaveLessonResult(ctx context.Context, userID, lessonID string, score, stars int) (domain.UserProgress, error) {
	key := s.key(userID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, lessonID).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			var prev domain.LessonProgress
			if jsonErr := json.Unmarshal([]byte(raw), &prev); jsonErr == nil {
				if stars < prev.Stars || (stars == prev.Stars && score <= prev.Score) {
					return nil // stored result is at least as good
				}
			}
		}

		record, err := json.Marshal(domain.LessonProgress{Completed: true, Stars: stars, Score: score})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, lessonID, record)
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("save progress: %w", err)
	}

	return s.Progress(ctx, userID)
}

func (s *ProgressStore) key(userID string) string {
	return "trainer:progress:" + userID
}
