package http

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/extract"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/llm"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNING HANDLERS
// The AI student, topic extraction and study notes.
// ══════════════════════════════════════════════════════════════════════════════

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Topic    string        `json:"topic"`
	Persona  string        `json:"persona"`
	Messages []chatMessage `json:"messages"`
}

// handleLearnChat handles POST /api/v1/learn/chat
func (s *Server) handleLearnChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	turns := make([]llm.Turn, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := llm.RoleModel
		if m.Role == "user" {
			role = llm.RoleUser
		}
		turns = append(turns, llm.Turn{Role: role, Text: m.Content})
	}

	reply, err := s.deps.Tutor.Chat(r.Context(), llm.ChatInput{
		Topic:    req.Topic,
		Persona:  req.Persona,
		Messages: turns,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, reply)
}

// handleLearnTopics handles POST /api/v1/learn/topics
func (s *Server) handleLearnTopics(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readMaterial(w, r)
	if !ok {
		return
	}

	topics, err := s.deps.Tutor.ExtractTopics(r.Context(), doc.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("topics extracted",
		logger.Operation("learn.topics"),
		logger.Int("topics", len(topics)),
		logger.Int("content_chars", len(doc.Content)),
	)
	writeJSON(w, r, http.StatusOK, map[string]any{
		"topics": topics,
		"title":  doc.Title,
	})
}

// handleLearnNotes handles POST /api/v1/learn/notes
func (s *Server) handleLearnNotes(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readMaterial(w, r)
	if !ok {
		return
	}

	notes, err := s.deps.Tutor.GenerateNotes(r.Context(), doc.Content, doc.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"notes": notes})
}

type materialRequest struct {
	URL string `json:"url"`
}

// readMaterial extracts study material from a multipart upload ("file" or
// "url" field) or a JSON body with a url. It writes the error response
// itself and reports whether the caller should continue.
func (s *Server) readMaterial(w http.ResponseWriter, r *http.Request) (*extract.Document, bool) {
	ctx := r.Context()
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		doc *extract.Document
		err error
	)

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
			writeError(w, r, invalidUpload(err))
			return nil, false
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, ferr := r.FormFile("file")
		switch {
		case ferr == nil:
			defer file.Close()
			doc, err = s.deps.Extractor.FromFile(ctx, header.Filename, file)
		case errors.Is(ferr, http.ErrMissingFile):
			u := strings.TrimSpace(r.FormValue("url"))
			if u == "" {
				writeError(w, r, shared.Validation("learn", "Material", "No file or URL provided"))
				return nil, false
			}
			doc, err = s.deps.Extractor.FromURL(ctx, u)
		default:
			writeError(w, r, invalidUpload(ferr))
			return nil, false
		}

	default:
		var req materialRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return nil, false
		}
		if strings.TrimSpace(req.URL) == "" {
			writeError(w, r, shared.Validation("learn", "Material", "No file or URL provided"))
			return nil, false
		}
		doc, err = s.deps.Extractor.FromURL(ctx, req.URL)
	}

	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return doc, true
}

func invalidUpload(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}
	return shared.WrapError("learn", "Upload", shared.ErrValidation, "invalid multipart upload", err)
}
