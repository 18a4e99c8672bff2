package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// NewRouter mounts the websocket endpoint and the read-only REST surface.
func NewRouter(service *app.AttemptService, metrics http.Handler, log *zap.Logger) http.Handler {
	api := &restHandler{service: service}
	ws := NewWSHandler(service, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	r.Get("/ws", ws.ServeWS)
	r.Route("/quizzes/{quizID}", func(qr chi.Router) {
		qr.Get("/", api.getQuiz)
		qr.Get("/attempts", api.listAttempts)
	})
	r.Get("/attempts/{attemptID}", api.getAttempt)
	return r
}

type restHandler struct {
	service *app.AttemptService
}

func (h *restHandler) getQuiz(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Quiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *restHandler) listAttempts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, domain.ErrMissingUser)
		return
	}
	attempts, err := h.service.Attempts(r.Context(), chi.URLParam(r, "quizID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

func (h *restHandler) getAttempt(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMissingUser):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrMaxAttemptsReached):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorPayload{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
