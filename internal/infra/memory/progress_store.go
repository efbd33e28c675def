package memory

import (
	"context"
	"sync"

	"aura-trainer-service/internal/domain"
)

// ProgressStore is an in-memory implementation of trainer.ProgressRepository.
type ProgressStore struct {
	mu    sync.RWMutex
	users map[string]domain.UserProgress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{users: make(map[string]domain.UserProgress)}
}

func (s *ProgressStore) Progress(_ context.Context, userID string) (domain.UserProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if progress, ok := s.users[userID]; ok {
		return clone(progress), nil
	}
	return domain.NewUserProgress(), nil
}

func (s *ProgressStore) SaveLessonResult(_ context.Context, userID, lessonID string, score, stars int) (domain.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	progress, ok := s.users[userID]
	if !ok {
		progress = domain.NewUserProgress()
	}
	progress.Apply(lessonID, score, stars)
	s.users[userID] = progress
	return clone(progress), nil
}

func clone(p domain.UserProgress) domain.UserProgress {
	out := domain.UserProgress{
		TotalStars: p.TotalStars,
		Lessons:    make(map[string]domain.LessonProgress, len(p.Lessons)),
	}
	for id, lp := range p.Lessons {
		out.Lessons[id] = lp
	}
	return out
}
