package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"aura-trainer-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ContentStore persists lessons, their words, and quests in Postgres. Writes
// that touch both the lessons and words tables run in one transaction: a
// failed words insert rolls the lesson row back instead of leaving an
// orphan.
type ContentStore struct {
	pool *pgxpool.Pool
}

func NewContentStore(pool *pgxpool.Pool) *ContentStore {
	return &ContentStore{pool: pool}
}

// LoadLesson satisfies the loader side of the cached lesson repository.
func (s *ContentStore) LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	return s.Lesson(ctx, lessonID)
}

func (s *ContentStore) Lesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	var lesson domain.Lesson
	var questID *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, quest_id, title, description, icon, response_timer FROM lessons WHERE id=$1`,
		lessonID,
	).Scan(&lesson.ID, &questID, &lesson.Title, &lesson.Description, &lesson.Icon, &lesson.ResponseTimer)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	if err != nil {
		return domain.Lesson{}, fmt.Errorf("load lesson: %w", err)
	}
	if questID != nil {
		lesson.QuestID = *questID
	}

	words, err := s.lessonWords(ctx, lessonID)
	if err != nil {
		return domain.Lesson{}, err
	}
	lesson.Words = words
	return lesson, nil
}

func (s *ContentStore) lessonWords(ctx context.Context, lessonID string) ([]domain.Word, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, value, word, alts FROM words WHERE lesson_id=$1 ORDER BY position`,
		lessonID,
	)
	if err != nil {
		return nil, fmt.Errorf("load words: %w", err)
	}
	defer rows.Close()

	var words []domain.Word
	for rows.Next() {
		var w domain.Word
		var alts []byte
		if err := rows.Scan(&w.ID, &w.Value, &w.Word, &alts); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		if len(alts) > 0 {
			if err := json.Unmarshal(alts, &w.Alts); err != nil {
				return nil, fmt.Errorf("unmarshal alts: %w", err)
			}
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

func (s *ContentStore) ListLessons(ctx context.Context) ([]domain.Lesson, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, quest_id, title, description, icon, response_timer FROM lessons ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []domain.Lesson
	for rows.Next() {
		var lesson domain.Lesson
		var questID *string
		if err := rows.Scan(&lesson.ID, &questID, &lesson.Title, &lesson.Description, &lesson.Icon, &lesson.ResponseTimer); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		if questID != nil {
			lesson.QuestID = *questID
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range lessons {
		words, err := s.lessonWords(ctx, lessons[i].ID)
		if err != nil {
			return nil, err
		}
		lessons[i].Words = words
	}
	return lessons, nil
}

func (s *ContentStore) CreateLesson(ctx context.Context, lesson domain.Lesson) (domain.Lesson, error) {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if lesson.Icon == "" {
		lesson.Icon = "🎓"
	}

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO lessons (id, quest_id, title, description, icon, response_timer) VALUES ($1, $2, $3, $4, $5, $6)`,
			lesson.ID, nullable(lesson.QuestID), lesson.Title, lesson.Description, lesson.Icon, lesson.TimerSeconds())
		if err != nil {
			return fmt.Errorf("insert lesson: %w", err)
		}
		return s.insertWords(ctx, tx, lesson.ID, lesson.Words)
	})
	if err != nil {
		return domain.Lesson{}, err
	}
	return s.Lesson(ctx, lesson.ID)
}

func (s *ContentStore) UpdateLesson(ctx context.Context, lesson domain.Lesson) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE lessons SET quest_id=$2, title=$3, description=$4, icon=COALESCE(NULLIF($5, ''), icon), response_timer=$6 WHERE id=$1`,
			lesson.ID, nullable(lesson.QuestID), lesson.Title, lesson.Description, lesson.Icon, lesson.TimerSeconds())
		if err != nil {
			return fmt.Errorf("update lesson: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrLessonNotFound
		}
		// Replace the word list wholesale; simpler than diffing at this scale.
		if _, err := tx.Exec(ctx, `DELETE FROM words WHERE lesson_id=$1`, lesson.ID); err != nil {
			return fmt.Errorf("delete words: %w", err)
		}
		return s.insertWords(ctx, tx, lesson.ID, lesson.Words)
	})
}

func (s *ContentStore) DeleteLesson(ctx context.Context, lessonID string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM words WHERE lesson_id=$1`, lessonID); err != nil {
			return fmt.Errorf("delete words: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM lessons WHERE id=$1`, lessonID)
		if err != nil {
			return fmt.Errorf("delete lesson: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrLessonNotFound
		}
		return nil
	})
}

func (s *ContentStore) insertWords(ctx context.Context, tx pgx.Tx, lessonID string, words []domain.Word) error {
	for position, w := range words {
		id := w.ID
		if id == "" {
			id = uuid.NewString()
		}
		alts, err := json.Marshal(w.Alts)
		if err != nil {
			return fmt.Errorf("marshal alts: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO words (id, lesson_id, position, value, word, alts) VALUES ($1, $2, $3, $4, $5, $6)`,
			id, lessonID, position, w.Value, w.Word, alts); err != nil {
			return fmt.Errorf("insert word: %w", err)
		}
	}
	return nil
}

func (s *ContentStore) Quest(ctx context.Context, questID string) (domain.Quest, error) {
	var quest domain.Quest
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, description, icon FROM quests WHERE id=$1`, questID,
	).Scan(&quest.ID, &quest.Title, &quest.Description, &quest.Icon)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quest{}, domain.ErrQuestNotFound
	}
	if err != nil {
		return domain.Quest{}, fmt.Errorf("load quest: %w", err)
	}
	return quest, nil
}

func (s *ContentStore) ListQuests(ctx context.Context) ([]domain.Quest, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, description, icon FROM quests ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list quests: %w", err)
	}
	defer rows.Close()

	var quests []domain.Quest
	for rows.Next() {
		var quest domain.Quest
		if err := rows.Scan(&quest.ID, &quest.Title, &quest.Description, &quest.Icon); err != nil {
			return nil, fmt.Errorf("scan quest: %w", err)
		}
		quests = append(quests, quest)
	}
	return quests, rows.Err()
}

func (s *ContentStore) CreateQuest(ctx context.Context, quest domain.Quest) (domain.Quest, error) {
	if quest.ID == "" {
		quest.ID = uuid.NewString()
	}
	if quest.Icon == "" {
		quest.Icon = "🗺️"
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quests (id, title, description, icon) VALUES ($1, $2, $3, $4)`,
		quest.ID, quest.Title, quest.Description, quest.Icon)
	if err != nil {
		return domain.Quest{}, fmt.Errorf("insert quest: %w", err)
	}
	return quest, nil
}

func (s *ContentStore) UpdateQuest(ctx context.Context, quest domain.Quest) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quests SET title=$2, description=$3, icon=COALESCE(NULLIF($4, ''), icon) WHERE id=$1`,
		quest.ID, quest.Title, quest.Description, quest.Icon)
	if err != nil {
		return fmt.Errorf("update quest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestNotFound
	}
	return nil
}

func (s *ContentStore) DeleteQuest(ctx context.Context, questID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quests WHERE id=$1`, questID)
	if err != nil {
		return fmt.Errorf("delete quest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestNotFound
	}
	return nil
}

func (s *ContentStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
