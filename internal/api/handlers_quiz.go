package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/dgallion1/quizgest/internal/pathstore"
	"github.com/dgallion1/quizgest/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

const maxStoredQuestions = 10000

// handleGetQuiz reads a published quiz back from the result store.
func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "result store not configured", http.StatusServiceUnavailable)
		return
	}
	docID := chi.URLParam(r, "docID")
	ctx := r.Context()

	meta, err := s.store.GetNode(ctx, pipeline.MetaKey(docID))
	if err != nil {
		jsonError(w, "failed to read quiz: "+err.Error(), http.StatusBadGateway)
		return
	}
	if meta == nil {
		jsonError(w, "quiz not found", http.StatusNotFound)
		return
	}

	children, err := s.store.ListChildren(ctx, fmt.Sprintf("quizzes/%s/questions", docID), maxStoredQuestions)
	if err != nil {
		jsonError(w, "failed to list questions: "+err.Error(), http.StatusBadGateway)
		return
	}
	// Keys start with the zero-padded discovery index.
	slices.SortFunc(children, func(a, b pathstore.Node) int {
		return strings.Compare(a.Key, b.Key)
	})
	questions := make([]any, 0, len(children))
	for _, child := range children {
		questions = append(questions, child.Value)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id":    docID,
		"meta":      meta.Value,
		"questions": questions,
	})
}

// handleDeleteQuiz removes a published quiz and all its questions.
func (s *Server) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "result store not configured", http.StatusServiceUnavailable)
		return
	}
	docID := chi.URLParam(r, "docID")
	if err := s.store.DeleteNode(r.Context(), "quizzes/"+docID, true); err != nil {
		jsonError(w, "failed to delete quiz: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"doc_id": docID, "deleted": true})
}
