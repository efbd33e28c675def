package domain

// Word is one item a learner has to pronounce. Value is the glyph shown on
// screen (a numeral, a word, an emoji); Word is the canonical utterance the
// recognizer listens for, and Alts are additional accepted utterances.
type Word struct {
	ID    string   `json:"id,omitempty"`
	Value string   `json:"value"`
	Word  string   `json:"word"`
	Alts  []string `json:"alts,omitempty"`
}

// Lesson is an ordered word list with a per-word response timer. It is
// authored through the admin API and consumed read-only by the trainer.
type Lesson struct {
	ID            string `json:"id"`
	QuestID       string `json:"questId,omitempty"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Icon          string `json:"icon,omitempty"`
	ResponseTimer int    `json:"responseTimer"` // seconds per word
	Words         []Word `json:"words"`
}

// DefaultResponseTimer is used when a lesson carries no timer of its own.
const DefaultResponseTimer = 6

// TimerSeconds returns the lesson's response timer, falling back to the
// default for legacy rows stored without one.
func (l Lesson) TimerSeconds() int {
	if l.ResponseTimer >= 1 {
		return l.ResponseTimer
	}
	return DefaultResponseTimer
}

// Quest groups lessons on the map screen. It has no trainer-side behavior.
type Quest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

// LessonProgress is the persisted best result for one lesson.
type LessonProgress struct {
	Completed bool `json:"completed"`
	Stars     int  `json:"stars"`
	Score     int  `json:"score"`
}

// UserProgress aggregates per-lesson progress. TotalStars is always the sum
// of the stored lesson stars.
type UserProgress struct {
	TotalStars int                       `json:"totalStars"`
	Lessons    map[string]LessonProgress `json:"lessons"`
}

// NewUserProgress returns the empty default used when nothing is stored yet.
func NewUserProgress() UserProgress {
	return UserProgress{Lessons: make(map[string]LessonProgress)}
}

// Apply records a lesson result if it beats the stored one: a higher star
// tier always wins, equal stars win on a strictly higher score. It reports
// whether the record changed and keeps TotalStars consistent either way.
func (p *UserProgress) Apply(lessonID string, score, stars int) bool {
	if p.Lessons == nil {
		p.Lessons = make(map[string]LessonProgress)
	}
	prev, ok := p.Lessons[lessonID]
	if ok && (stars < prev.Stars || (stars == prev.Stars && score <= prev.Score)) {
		return false
	}
	p.Lessons[lessonID] = LessonProgress{Completed: true, Stars: stars, Score: score}

	total := 0
	for _, lp := range p.Lessons {
		total += lp.Stars
	}
	p.TotalStars = total
	return true
}
