package domain

import "errors"

var (
	// ErrLessonNotFound indicates the lesson content could not be loaded.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrQuestNotFound indicates an unknown quest id.
	ErrQuestNotFound = errors.New("quest not found")
	// ErrEmptyLesson is returned when a lesson has no words to train on.
	ErrEmptyLesson = errors.New("lesson has no words")
	// ErrRoundClosed is returned when an operation reaches a torn-down round.
	ErrRoundClosed = errors.New("training round closed")
	// ErrInvalidAdminKey is returned when the shared admin secret does not match.
	ErrInvalidAdminKey = errors.New("invalid admin key")
)
