package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"skillzone-service/internal/app"
	"skillzone-service/internal/domain"
)

// Services groups the use cases exposed over HTTP.
type Services struct {
	Quizzes    *app.QuizService
	Gate       *app.UnlockGate
	Ledger     *app.PointsLedger
	Statistics *app.Statistics
}

// Handler binds the use cases to JSON routes and the live websocket.
type Handler struct {
	svc      Services
	auth     *Authenticator
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
	tick     time.Duration
}

func NewHandler(svc Services, auth *Authenticator, log logrus.FieldLogger) *Handler {
	return &Handler{
		svc:  svc,
		auth: auth,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tick: time.Second,
	}
}

// Routes returns the service mux wrapped in request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /quizzes/{quizID}/start", h.auth.Require(h.startQuiz))
	mux.HandleFunc("POST /quizzes/{quizID}/submit", h.auth.Require(h.submitQuiz))
	mux.HandleFunc("GET /quizzes/{quizID}/progress", h.auth.Require(h.quizProgress))
	mux.HandleFunc("GET /quizzes/{quizID}/achievements", h.auth.Require(h.quizAchievements))
	mux.HandleFunc("GET /quizzes/{quizID}/statistics", h.auth.Require(h.quizStatistics))
	mux.HandleFunc("GET /quizzes/{quizID}/live", h.auth.Require(h.serveLive))

	mux.HandleFunc("GET /courses/{courseID}/statistics", h.auth.Require(h.courseStatistics))
	mux.HandleFunc("GET /courses/{courseID}/access", h.auth.Require(h.courseAccess))
	mux.HandleFunc("POST /courses/{courseID}/unlock", h.auth.Require(h.unlockCourse))

	mux.HandleFunc("GET /lessons/{lessonID}/access", h.auth.Require(h.lessonAccess))
	mux.HandleFunc("POST /lessons/{lessonID}/unlock", h.auth.Require(h.unlockLesson))
	mux.HandleFunc("POST /lessons/{lessonID}/complete", h.auth.Require(h.completeLesson))

	mux.HandleFunc("GET /me/points", h.auth.Require(h.account))
	return h.logRequests(mux)
}

func (h *Handler) startQuiz(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Quizzes.Start(r.Context(), userIDFrom(r.Context()), r.PathValue("quizID"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	message := "Quiz started successfully"
	if res.Resumed {
		message = "Quiz resumed"
	}
	writeOK(w, message, res)
}

func (h *Handler) submitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	res, err := h.svc.Quizzes.Submit(r.Context(), userIDFrom(r.Context()), r.PathValue("quizID"), domain.Submission{
		Answers:        req.Answers,
		IdempotencyKey: req.IdempotencyKey,
	})
	if errors.Is(err, domain.ErrTimeLimitExceeded) {
		h.fail(w, r, err, res)
		return
	}
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeOK(w, "Quiz submitted successfully", res)
}

func (h *Handler) quizProgress(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Quizzes.Progress(r.Context(), userIDFrom(r.Context()), r.PathValue("quizID"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeOK(w, "Quiz progress", res)
}

func (h *Handler) quizAchievements(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Quizzes.Achievements(r.Context(), userIDFrom(r.Context()), r.PathValue("quizID"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	if res == nil {
		res = []domain.QuizAchievement{}
	}
	writeOK(w, "Quiz achievements", res)
}

type quizStatisticsResponse struct {
	domain.QuizStatisticsReport
	Progress     domain.QuizProgress      `json:"progress"`
	Achievements []domain.QuizAchievement `json:"achievements"`
}

func (h *Handler) quizStatistics(w http.ResponseWriter, r *http.Request) {
	userID, quizID := userIDFrom(r.Context()), r.PathValue("quizID")

	var res quizStatisticsResponse
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		res.QuizStatisticsReport, err = h.svc.Statistics.QuizStatistics(ctx, userID, quizID)
		return err
	})
	g.Go(func() error {
		var err error
		res.Progress, err = h.svc.Quizzes.Progress(ctx, userID, quizID)
		return err
	})
	g.Go(func() error {
		var err error
		res.Achievements, err = h.svc.Quizzes.Achievements(ctx, userID, quizID)
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	if res.Achievements == nil {
		res.Achievements = []domain.QuizAchievement{}
	}
	writeOK(w, "Quiz statistics", res)
}

func (h *Handler) courseStatistics(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Statistics.CourseStatistics(r.Context(), userIDFrom(r.Context()), r.PathValue("courseID"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeOK(w, "Course statistics", res)
}

type accessResponse struct {
	ID        string `json:"id"`
	HasAccess bool   `json:"hasAccess"`
}

func (h *Handler) courseAccess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("courseID")
	ok, err := h.svc.Gate.CourseAccess(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeOK(w, "Course access", accessResponse{ID: id, HasAccess: ok})
}

func (h *Handler) lessonAccess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("lessonID")
	ok, err := h.svc.Gate.LessonAccess(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeOK(w, "Lesson access", accessResponse{ID: id, HasAccess: ok})
}

func (h *Handler) unlockCourse(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Gate.UnlockCourse(r.Context(), userIDFrom(r.Context()), r.PathValue("courseID"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeOK(w, "Course unlocked successfully", res)
}

func (h *Handler) unlockLesson(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Gate.UnlockLesson(r.Context(), userIDFrom(r.Context()), r.PathValue("lessonID"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeOK(w, "Lesson unlocked successfully", res)
}

func (h *Handler) completeLesson(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Gate.CompleteLesson(r.Context(), userIDFrom(r.Context()), r.PathValue("lessonID"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeOK(w, "Lesson completed successfully", res)
}

func (h *Handler) account(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Ledger.Account(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeOK(w, "Points balance", res)
}

// fail writes the error envelope. data is attached for errors that still
// carry a result, such as an expired submit.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, data any) {
	status := statusFor(err)
	entry := h.log.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	})
	message := err.Error()
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
		message = http.StatusText(status)
	} else {
		entry.Warn("request rejected")
	}
	writeJSON(w, status, envelope{Message: message, Data: data})
}
