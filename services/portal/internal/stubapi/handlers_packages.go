package stubapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"faydo/services/portal/internal/apiclient"
)

func (s *Server) handleListPackages(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	packages := make([]apiclient.Package, len(s.packages))
	copy(packages, s.packages)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(packages),
		"results": packages,
	})
}

func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid package id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pkg := range s.packages {
		if pkg.ID == id {
			respondJSON(w, http.StatusOK, pkg)
			return
		}
	}
	respondError(w, http.StatusNotFound, "package not found")
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	objectID, err := strconv.ParseInt(r.URL.Query().Get("object_id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid object_id")
		return
	}
	caller := usernameFromContext(r.Context())

	s.mu.Lock()
	comments := make([]apiclient.Comment, len(s.comments[objectID]))
	copy(comments, s.comments[objectID])
	for i := range comments {
		comments[i].IsLiked = s.likes[comments[i].ID][caller]
	}
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, comments)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text        string `json:"text"`
		ContentType int64  `json:"content_type"`
		ObjectID    int64  `json:"object_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "text: this field is required")
		return
	}

	s.mu.Lock()
	comment := apiclient.Comment{
		ID:        s.nextCommentID(),
		Text:      req.Text,
		UserName:  usernameFromContext(r.Context()),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	s.comments[req.ObjectID] = append(s.comments[req.ObjectID], comment)
	s.mu.Unlock()

	respondJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleLikeComment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid comment id")
		return
	}
	caller := usernameFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	var found bool
	for _, list := range s.comments {
		for _, c := range list {
			if c.ID == id {
				found = true
			}
		}
	}
	if !found {
		respondError(w, http.StatusNotFound, "comment not found")
		return
	}

	if s.likes[id] == nil {
		s.likes[id] = make(map[string]bool)
	}
	liked := !s.likes[id][caller]
	if liked {
		s.likes[id][caller] = true
	} else {
		delete(s.likes[id], caller)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"is_liked":    liked,
		"likes_count": len(s.likes[id]),
	})
}
