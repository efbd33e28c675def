package trainer

import (
	"context"

	"aura-trainer-service/internal/domain"
	"aura-trainer-service/internal/speech"
)

// LessonRepository loads lesson content (from cache/backing store).
type LessonRepository interface {
	Lesson(ctx context.Context, lessonID string) (domain.Lesson, error)
}

// ProgressRepository abstracts how per-user progress is stored (in-memory,
// Redis, etc). SaveLessonResult applies the ratchet: a result is only
// recorded if it beats the stored one, and the returned UserProgress always
// carries the recomputed star total.
type ProgressRepository interface {
	Progress(ctx context.Context, userID string) (domain.UserProgress, error)
	SaveLessonResult(ctx context.Context, userID, lessonID string, score, stars int) (domain.UserProgress, error)
}

// Service contains the trainer use cases: it resolves lesson content and
// spins up rounds over a client's speech engines.
type Service struct {
	lessons  LessonRepository
	progress ProgressRepository
	cfg      Config
}

func NewService(lessons LessonRepository, progress ProgressRepository, cfg Config) *Service {
	return &Service{lessons: lessons, progress: progress, cfg: cfg}
}

// OpenRound loads the lesson and builds a round over the given engines. A
// lesson fetch fault propagates and no partial round is started. The caller
// owns the round and must Close it on teardown.
func (s *Service) OpenRound(ctx context.Context, lessonID, userID string, rec speech.Recognizer, syn speech.Synthesizer, sink Sink) (*Round, error) {
	lesson, err := s.lessons.Lesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	return NewRound(ctx, lesson, userID, rec, syn, s.progress, sink, s.cfg)
}

// UserProgress reads the stored progress for a user, defaulting to empty.
func (s *Service) UserProgress(ctx context.Context, userID string) (domain.UserProgress, error) {
	return s.progress.Progress(ctx, userID)
}
