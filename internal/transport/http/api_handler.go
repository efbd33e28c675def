package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"aura-trainer-service/internal/domain"
	"aura-trainer-service/internal/trainer"
)

// ContentStore is the admin CRUD surface over lessons and quests.
type ContentStore interface {
	ListLessons(ctx context.Context) ([]domain.Lesson, error)
	Lesson(ctx context.Context, lessonID string) (domain.Lesson, error)
	CreateLesson(ctx context.Context, lesson domain.Lesson) (domain.Lesson, error)
	UpdateLesson(ctx context.Context, lesson domain.Lesson) error
	DeleteLesson(ctx context.Context, lessonID string) error

	ListQuests(ctx context.Context) ([]domain.Quest, error)
	Quest(ctx context.Context, questID string) (domain.Quest, error)
	CreateQuest(ctx context.Context, quest domain.Quest) (domain.Quest, error)
	UpdateQuest(ctx context.Context, quest domain.Quest) error
	DeleteQuest(ctx context.Context, questID string) error
}

// APIHandler serves the lesson/quest CRUD endpoints the admin console uses,
// plus progress reads for the leaderboard. Write operations require the
// shared admin key; it is a plain string comparison, a known weak point kept
// as-is rather than a security boundary.
type APIHandler struct {
	content    ContentStore
	progress   trainer.ProgressRepository
	adminKey   string
	invalidate func(lessonID string) // optional lesson-cache hook
}

func NewAPIHandler(content ContentStore, progress trainer.ProgressRepository, adminKey string, invalidate func(lessonID string)) *APIHandler {
	if invalidate == nil {
		invalidate = func(string) {}
	}
	return &APIHandler{
		content:    content,
		progress:   progress,
		adminKey:   strings.TrimSpace(adminKey),
		invalidate: invalidate,
	}
}

// Register mounts all REST routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /lessons", h.listLessons)
	mux.HandleFunc("POST /lessons", h.createLesson)
	mux.HandleFunc("GET /lessons/{id}", h.getLesson)
	mux.HandleFunc("PUT /lessons/{id}", h.updateLesson)
	mux.HandleFunc("DELETE /lessons/{id}", h.deleteLesson)

	mux.HandleFunc("GET /quests", h.listQuests)
	mux.HandleFunc("POST /quests", h.createQuest)
	mux.HandleFunc("GET /quests/{id}", h.getQuest)
	mux.HandleFunc("PUT /quests/{id}", h.updateQuest)
	mux.HandleFunc("DELETE /quests/{id}", h.deleteQuest)

	mux.HandleFunc("GET /auth/verify", h.verifyKey)
	mux.HandleFunc("GET /progress/{userId}", h.getProgress)
}

type lessonRequest struct {
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Icon          string        `json:"icon"`
	QuestID       string        `json:"questId"`
	ResponseTimer int           `json:"responseTimer"`
	Words         []domain.Word `json:"words"`
	AdminKey      string        `json:"adminKey"`
}

type questRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	AdminKey    string `json:"adminKey"`
}

func (h *APIHandler) listLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.content.ListLessons(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (h *APIHandler) getLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := h.content.Lesson(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *APIHandler) createLesson(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !h.keyMatches(req.AdminKey) {
		writeError(w, domain.ErrInvalidAdminKey)
		return
	}
	if req.Title == "" || len(req.Words) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and words are required"})
		return
	}

	lesson, err := h.content.CreateLesson(r.Context(), domain.Lesson{
		QuestID:       req.QuestID,
		Title:         req.Title,
		Description:   req.Description,
		Icon:          req.Icon,
		ResponseTimer: req.ResponseTimer,
		Words:         req.Words,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "lessonId": lesson.ID})
}

func (h *APIHandler) updateLesson(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req lessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !h.keyMatches(req.AdminKey) {
		writeError(w, domain.ErrInvalidAdminKey)
		return
	}

	err := h.content.UpdateLesson(r.Context(), domain.Lesson{
		ID:            id,
		QuestID:       req.QuestID,
		Title:         req.Title,
		Description:   req.Description,
		Icon:          req.Icon,
		ResponseTimer: req.ResponseTimer,
		Words:         req.Words,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *APIHandler) deleteLesson(w http.ResponseWriter, r *http.Request) {
	if !h.keyMatches(r.URL.Query().Get("adminKey")) {
		writeError(w, domain.ErrInvalidAdminKey)
		return
	}
	id := r.PathValue("id")
	if err := h.content.DeleteLesson(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *APIHandler) listQuests(w http.ResponseWriter, r *http.Request) {
	quests, err := h.content.ListQuests(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quests)
}

func (h *APIHandler) getQuest(w http.ResponseWriter, r *http.Request) {
	quest, err := h.content.Quest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quest)
}

func (h *APIHandler) createQuest(w http.ResponseWriter, r *http.Request) {
	var req questRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !h.keyMatches(req.AdminKey) {
		writeError(w, domain.ErrInvalidAdminKey)
		return
	}
	quest, err := h.content.CreateQuest(r.Context(), domain.Quest{
		Title:       req.Title,
		Description: req.Description,
		Icon:        req.Icon,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "quest": quest})
}

func (h *APIHandler) updateQuest(w http.ResponseWriter, r *http.Request) {
	var req questRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !h.keyMatches(req.AdminKey) {
		writeError(w, domain.ErrInvalidAdminKey)
		return
	}
	err := h.content.UpdateQuest(r.Context(), domain.Quest{
		ID:          r.PathValue("id"),
		Title:       req.Title,
		Description: req.Description,
		Icon:        req.Icon,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *APIHandler) deleteQuest(w http.ResponseWriter, r *http.Request) {
	if !h.keyMatches(r.URL.Query().Get("adminKey")) {
		writeError(w, domain.ErrInvalidAdminKey)
		return
	}
	if err := h.content.DeleteQuest(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *APIHandler) verifyKey(w http.ResponseWriter, r *http.Request) {
	if !h.keyMatches(r.URL.Query().Get("adminKey")) {
		writeError(w, domain.ErrInvalidAdminKey)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *APIHandler) getProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.progress.Progress(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *APIHandler) keyMatches(provided string) bool {
	return h.adminKey != "" && strings.TrimSpace(provided) == h.adminKey
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrLessonNotFound), errors.Is(err, domain.ErrQuestNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidAdminKey):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
