package memory

import (
	"context"
	"sync"

	"aura-trainer-service/internal/domain"

	"github.com/google/uuid"
)

// ContentStore is an in-memory lesson/quest store (useful for tests/demos
// and for running without Postgres). It supports the full admin CRUD
// surface and doubles as a LessonLoader for the cached read path.
type ContentStore struct {
	mu      sync.RWMutex
	lessons map[string]domain.Lesson
	order   []string
	quests  map[string]domain.Quest
}

func NewContentStore(seed []domain.Lesson) *ContentStore {
	s := &ContentStore{
		lessons: make(map[string]domain.Lesson),
		quests:  make(map[string]domain.Quest),
	}
	for _, lesson := range seed {
		if lesson.ID == "" {
			lesson.ID = uuid.NewString()
		}
		s.lessons[lesson.ID] = lesson
		s.order = append(s.order, lesson.ID)
	}
	return s
}

// LoadLesson satisfies the LessonLoader used by the cached repository.
func (s *ContentStore) LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	return s.Lesson(ctx, lessonID)
}

func (s *ContentStore) Lesson(_ context.Context, lessonID string) (domain.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lesson, ok := s.lessons[lessonID]
	if !ok {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	return lesson, nil
}

func (s *ContentStore) ListLessons(_ context.Context) ([]domain.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lessons := make([]domain.Lesson, 0, len(s.order))
	for _, id := range s.order {
		if lesson, ok := s.lessons[id]; ok {
			lessons = append(lessons, lesson)
		}
	}
	return lessons, nil
}

func (s *ContentStore) CreateLesson(_ context.Context, lesson domain.Lesson) (domain.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	for i := range lesson.Words {
		if lesson.Words[i].ID == "" {
			lesson.Words[i].ID = uuid.NewString()
		}
	}
	s.lessons[lesson.ID] = lesson
	s.order = append(s.order, lesson.ID)
	return lesson, nil
}

func (s *ContentStore) UpdateLesson(_ context.Context, lesson domain.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[lesson.ID]; !ok {
		return domain.ErrLessonNotFound
	}
	s.lessons[lesson.ID] = lesson
	return nil
}

func (s *ContentStore) DeleteLesson(_ context.Context, lessonID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[lessonID]; !ok {
		return domain.ErrLessonNotFound
	}
	delete(s.lessons, lessonID)
	for i, id := range s.order {
		if id == lessonID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *ContentStore) Quest(_ context.Context, questID string) (domain.Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quest, ok := s.quests[questID]
	if !ok {
		return domain.Quest{}, domain.ErrQuestNotFound
	}
	return quest, nil
}

func (s *ContentStore) ListQuests(_ context.Context) ([]domain.Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quests := make([]domain.Quest, 0, len(s.quests))
	for _, quest := range s.quests {
		quests = append(quests, quest)
	}
	return quests, nil
}

func (s *ContentStore) CreateQuest(_ context.Context, quest domain.Quest) (domain.Quest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quest.ID == "" {
		quest.ID = uuid.NewString()
	}
	s.quests[quest.ID] = quest
	return quest, nil
}

func (s *ContentStore) UpdateQuest(_ context.Context, quest domain.Quest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quests[quest.ID]; !ok {
		return domain.ErrQuestNotFound
	}
	s.quests[quest.ID] = quest
	return nil
}

func (s *ContentStore) DeleteQuest(_ context.Context, questID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quests[questID]; !ok {
		return domain.ErrQuestNotFound
	}
	delete(s.quests, questID)
	return nil
}
