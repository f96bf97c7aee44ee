package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/klauspost/compress/gzhttp"

	"github.com/speaklarity/platform/internal/config"
	apperrors "github.com/speaklarity/platform/internal/errors"
	"github.com/speaklarity/platform/internal/orchestrator/notify"
	"github.com/speaklarity/platform/internal/store"
	"github.com/speaklarity/platform/internal/trace"
)

// Jobs is the part of the job manager the API drives.
type Jobs interface {
	Create(ctx context.Context, r io.ReadSeeker, filename string) (*store.Conversation, error)
	Submit(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Subscriber hands out stage event subscriptions.
type Subscriber interface {
	Subscribe(buffer int) (<-chan notify.Event, func())
}

// StageMessage is pushed to WebSocket clients on every stage change.
type StageMessage struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Stage          store.Stage `json:"stage"`
	ActionsDone    int         `json:"actions_done"`
	TotalActions   int         `json:"total_actions"`
	Error          string      `json:"error,omitempty"`
}

// ConversationSummary is one row of the listing.
type ConversationSummary struct {
	ID           string      `json:"conversation_id"`
	Filename     string      `json:"filename"`
	Action       store.Stage `json:"action"`
	Summary      string      `json:"summary"`
	ActionsDone  int         `json:"actions_done"`
	TotalActions int         `json:"total_actions"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	jobs      Jobs
	store     store.Store
	audio     *store.AudioDir
	hub       Subscriber
	maxUpload int64
}

// New creates a new server.
func New(jobs Jobs, st store.Store, audioDir *store.AudioDir, hub Subscriber, cfg *config.Config) *Server {
	return &Server{
		jobs:      jobs,
		store:     st,
		audio:     audioDir,
		hub:       hub,
		maxUpload: cfg.Audio.MaxUploadBytes,
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/conversations", s.handleUpload)
	api.HandleFunc("GET /api/conversations", s.handleList)
	api.HandleFunc("GET /api/conversations/{id}", s.handleGet)
	api.HandleFunc("DELETE /api/conversations/{id}", s.handleDelete)
	api.HandleFunc("GET /api/conversations/{id}/audio", s.handleAudio)
	api.HandleFunc("POST /api/conversations/{id}/process", s.handleProcess)

	mux := http.NewServeMux()
	mux.Handle("/api/", gzhttp.GzipHandler(api))
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := trace.Logger(ctx)

	if s.maxUpload > 0 {
		if r.ContentLength > s.maxUpload {
			writeTooLarge(w)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	if err := r.ParseMultipartForm(MultipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if stderrors.As(err, &tooBig) {
			writeTooLarge(w)
			return
		}
		writeError(w, apperrors.Wrap(err, apperrors.InvalidArgument, "parse upload"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		writeError(w, apperrors.Newf(apperrors.InvalidArgument, "missing %q file field", UploadField))
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".wav") {
		writeError(w, apperrors.Newf(apperrors.AudioInvalidFormat, "only .wav uploads are accepted, got %q", header.Filename))
		return
	}

	conv, err := s.jobs.Create(ctx, file, header.Filename)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.jobs.Submit(ctx, conv.ID); err != nil {
		log.Error("failed to start job", "conversation_id", conv.ID, "error", err)
	}
	log.Info("conversation uploaded", "conversation_id", conv.ID, "filename", conv.Filename, "bytes", header.Size)
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	cs, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]ConversationSummary, len(cs))
	for i, c := range cs {
		done, total := c.Action.Progress()
		out[i] = ConversationSummary{
			ID:           c.ID,
			Filename:     c.Filename,
			Action:       c.Action,
			Summary:      c.Summary,
			ActionsDone:  done,
			TotalActions: total,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	f, err := os.Open(s.audio.Path(id))
	if err != nil {
		writeError(w, apperrors.Newf(apperrors.NotFound, "audio for conversation %s not found", id))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.StoreFailed, "stat audio"))
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeContent(w, r, filepath.Base(c.Filename), info.ModTime(), f)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.Get(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if err := s.jobs.Submit(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"conversation_id": id, "status": "processing"})
}

// handleWebSocket streams stage events, optionally filtered to one
// conversation. When filtered, the current stage is sent first.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		trace.Logger(r.Context()).Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	events, unsubscribe := s.hub.Subscribe(SubscriberBuffer)
	defer unsubscribe()

	ctx := conn.CloseRead(r.Context())
	log := trace.Logger(ctx)
	want := r.URL.Query().Get("conversation_id")
	log.Info("websocket connected", "remote", r.RemoteAddr, "conversation_id", want)

	if want != "" {
		if c, err := s.store.Get(ctx, want); err == nil {
			if err := s.send(ctx, conn, notify.Event{ConversationID: c.ID, Stage: c.Action, Error: c.Error}); err != nil {
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug("websocket closed", "error", ctx.Err())
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if want != "" && e.ConversationID != want {
				continue
			}
			if err := s.send(ctx, conn, e); err != nil {
				log.Debug("websocket write error", "error", err)
				return
			}
		}
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, e notify.Event) error {
	done, total := e.Progress()
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, StageMessage{
		Type:           "stage",
		ConversationID: e.ConversationID,
		Stage:          e.Stage,
		ActionsDone:    done,
		TotalActions:   total,
		Error:          e.Error,
	})
}
