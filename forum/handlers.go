// forum/handlers.go
package forum

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"

	"github.com/Patrickming/blinks-forum/log"
)

const sessionUserKey = "userID"

type Handlers struct {
	db      *Database
	Session *scs.SessionManager
}

func NewHandlers(db *Database) *Handlers {
	session := scs.New()
	session.Lifetime = 24 * time.Hour
	session.Cookie.HttpOnly = true
	return &Handlers{db: db, Session: session}
}

func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/api/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/api/logout", h.logout).Methods(http.MethodPost)
	r.HandleFunc("/api/account", h.deleteAccount).Methods(http.MethodDelete)

	r.HandleFunc("/api/topics", h.listTopics).Methods(http.MethodGet)
	r.HandleFunc("/api/topics", h.createTopic).Methods(http.MethodPost)
	r.HandleFunc("/api/topics/{id}", h.showTopic).Methods(http.MethodGet)
	r.HandleFunc("/api/topics/{id}", h.deleteTopic).Methods(http.MethodDelete)
	r.HandleFunc("/api/topics/{id}/close", h.closeTopic).Methods(http.MethodPost)
	r.HandleFunc("/api/topics/{id}/tags", h.setTopicTags).Methods(http.MethodPut)
	r.HandleFunc("/api/topics/{id}/replies", h.listReplies).Methods(http.MethodGet)
	r.HandleFunc("/api/topics/{id}/replies", h.createReply).Methods(http.MethodPost)

	r.HandleFunc("/api/posts/{id}/like", h.like).Methods(http.MethodPost)
	r.HandleFunc("/api/posts/{id}/like", h.unlike).Methods(http.MethodDelete)

	r.HandleFunc("/api/tags", h.listTags).Methods(http.MethodGet)
	r.HandleFunc("/api/tags", h.createTag).Methods(http.MethodPost)
	r.HandleFunc("/api/categories", h.listCategories).Methods(http.MethodGet)
	r.HandleFunc("/api/categories", h.createCategory).Methods(http.MethodPost)
}

// --- auth ---

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	user, err := h.db.RegisterUser(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.Session.Put(r.Context(), sessionUserKey, user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	user, err := h.db.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Session.RenewToken(r.Context()); err != nil {
		writeError(w, storeErr(err, "failed to renew session"))
		return
	}
	h.Session.Put(r.Context(), sessionUserKey, user.ID)
	writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Destroy(r.Context()); err != nil {
		writeError(w, storeErr(err, "failed to destroy session"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.db.DeleteUserContent(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Session.Destroy(r.Context()); err != nil {
		log.Warn.Printf("destroying session after account delete: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- topics ---

func (h *Handlers) listTopics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := TopicFilter{Status: q.Get("status")}
	var err error
	if filter.CategoryID, err = optionalID(q.Get("category")); err != nil {
		writeError(w, err)
		return
	}
	if filter.TagID, err = optionalID(q.Get("tag")); err != nil {
		writeError(w, err)
		return
	}

	window := pageWindow(r)
	topics, pagination, err := h.db.ListTopics(r.Context(), filter, q.Get("sort"), window, h.viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":      topics,
		"pagination": pagination,
	})
}

func (h *Handlers) createTopic(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Title      string  `json:"title"`
		Content    string  `json:"content"`
		CategoryID int64   `json:"category_id"`
		TagIDs     []int64 `json:"tag_ids"`
	}
	if !decode(w, r, &req) {
		return
	}
	topic, err := h.db.CreateTopic(r.Context(), CreateTopicInput{
		AuthorID:   userID,
		CategoryID: req.CategoryID,
		Title:      req.Title,
		Content:    req.Content,
		TagIDs:     req.TagIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, topic)
}

func (h *Handlers) showTopic(w http.ResponseWriter, r *http.Request) {
	topicID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := h.db.GetTopic(r.Context(), topicID, h.viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) deleteTopic(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	topicID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.db.DeleteTopic(r.Context(), topicID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) closeTopic(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	topicID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.db.CloseTopic(r.Context(), topicID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) setTopicTags(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}
	topicID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		TagIDs []int64 `json:"tag_ids"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.db.SetTopicTags(r.Context(), topicID, req.TagIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- replies ---

func (h *Handlers) listReplies(w http.ResponseWriter, r *http.Request) {
	topicID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	window := pageWindow(r)
	replies, pagination, err := h.db.ListReplies(r.Context(), topicID, window, h.viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":      replies,
		"pagination": pagination,
	})
}

func (h *Handlers) createReply(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	topicID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Content      string `json:"content"`
		ParentPostID *int64 `json:"parent_post_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	post, err := h.db.CreateReply(r.Context(), CreateReplyInput{
		TopicID:      topicID,
		AuthorID:     userID,
		Content:      req.Content,
		ParentPostID: req.ParentPostID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// --- likes ---

func (h *Handlers) like(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, h.db.Like)
}

func (h *Handlers) unlike(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, h.db.Unlike)
}

func (h *Handlers) toggleLike(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, postID int64) (int, error)) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	postID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := op(r.Context(), userID, postID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"like_count": count})
}

// --- tags and categories ---

func (h *Handlers) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.db.ListTags(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *Handlers) createTag(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}
	var req struct {
		Name         string `json:"name"`
		ColorClasses string `json:"color_classes"`
	}
	if !decode(w, r, &req) {
		return
	}
	tag, err := h.db.CreateTag(r.Context(), req.Name, req.ColorClasses)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (h *Handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.db.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handlers) createCategory(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decode(w, r, &req) {
		return
	}
	cat, err := h.db.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

// --- helpers ---

// viewerID returns the session user id, 0 for anonymous requests.
func (h *Handlers) viewerID(r *http.Request) int64 {
	return h.Session.GetInt64(r.Context(), sessionUserKey)
}

func (h *Handlers) requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID := h.viewerID(r)
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":   "UNAUTHORIZED",
			"message": "login required",
		})
		return 0, false
	}
	return userID, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, NewValidation("malformed request body"))
		return false
	}
	return true
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, NewValidation("id must be a positive integer")
	}
	return id, nil
}

func optionalID(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewValidation("id must be a positive integer")
	}
	return id, nil
}

func pageWindow(r *http.Request) PageWindow {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return NewPageWindow(page, limit)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error.Printf("encoding response: %v", err)
	}
}

// HTTPStatus maps an error kind to its transport status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	message := "internal error"
	var fe *Error
	if errors.As(err, &fe) {
		message = fe.Message
	}
	if kind == KindUnavailable || kind == KindTimeout {
		log.Error.Printf("request failed: %v", err)
	}
	writeJSON(w, HTTPStatus(kind), map[string]string{
		"error":   string(kind),
		"message": message,
	})
}
