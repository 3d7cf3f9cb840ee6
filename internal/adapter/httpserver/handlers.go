package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/praxos/assistant-core/internal/config"
	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/resilience"
	"github.com/praxos/assistant-core/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg          config.Config
	AuthSvc      domain.AuthService
	Auth         *Authenticator
	Chat         *usecase.ChatService
	Sessions     *usecase.SessionService
	Notes        *usecase.NoteService
	Feedback     *usecase.FeedbackService
	Jobs         *usecase.JobService
	Registration *usecase.RegistrationService
	Breakers     *resilience.Registry
	DBCheck      func(ctx context.Context) error
	RedisCheck   func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers wired.
func NewServer(
	cfg config.Config,
	authSvc domain.AuthService,
	chat *usecase.ChatService,
	sessions *usecase.SessionService,
	notes *usecase.NoteService,
	feedback *usecase.FeedbackService,
	jobs *usecase.JobService,
	registration *usecase.RegistrationService,
	breakers *resilience.Registry,
	dbCheck func(context.Context) error,
	redisCheck func(context.Context) error,
) *Server {
	return &Server{
		Cfg:          cfg,
		AuthSvc:      authSvc,
		Auth:         NewAuthenticator(cfg, authSvc),
		Chat:         chat,
		Sessions:     sessions,
		Notes:        notes,
		Feedback:     feedback,
		Jobs:         jobs,
		Registration: registration,
		Breakers:     breakers,
		DBCheck:      dbCheck,
		RedisCheck:   redisCheck,
	}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// decodeJSON decodes a capped JSON body into dst and runs struct validation.
// A false return means the error response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
		return false
	}
	if err := getValidator().Struct(dst); err != nil {
		verrs := map[string]string{}
		if ve, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ve {
				verrs[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
		return false
	}
	return true
}

// identityOr401 pulls the verified identity injected by RequireUser.
func identityOr401(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, fmt.Errorf("%w: missing identity", domain.ErrUnauthorized), nil)
	}
	return ident, ok
}

// requireAccess gates project-scoped routes. Fail-closed: an unreachable
// access check denies exactly like an explicit no.
func (s *Server) requireAccess(w http.ResponseWriter, r *http.Request, projectID, userID string) bool {
	access, err := s.AuthSvc.CheckProjectAccess(r.Context(), projectID, userID)
	if err != nil {
		LoggerFrom(r).Warn("project access check unavailable, denying",
			"project_id", projectID, "user_id", userID, "error", err)
		writeError(w, r, fmt.Errorf("%w: no access to project", domain.ErrForbidden), nil)
		return false
	}
	if !access.HasAccess {
		LoggerFrom(r).Info("project access denied",
			"project_id", projectID, "user_id", userID, "access_type", string(access.AccessType))
		writeError(w, r, fmt.Errorf("%w: no access to project", domain.ErrForbidden), nil)
		return false
	}
	return true
}

// pathID validates a chi URL parameter as a resource id.
func pathID(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	id := chi.URLParam(r, param)
	if res := ValidateResourceID(param, id); !res.Valid {
		writeError(w, r, fmt.Errorf("%w: invalid %s", domain.ErrInvalidArgument, param), res.Errors)
		return "", false
	}
	return id, true
}

// LoginHandler exchanges credentials for a token and sets the session cookie.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		var req struct {
			Username string `json:"username" validate:"required,max=128"`
			Password string `json:"password" validate:"required,max=1024"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		sess, err := s.AuthSvc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		s.Auth.SetSessionCookie(w, sess.Token)
		writeJSON(w, http.StatusOK, map[string]string{
			"token":   sess.Token,
			"user_id": sess.UserID,
			"role":    sess.Role,
		})
	}
}

// LogoutHandler invalidates the token upstream and clears the cookie. The
// cookie is cleared even when the upstream call fails.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := TokenFromRequest(r, s.Cfg.SessionCookieName); token != "" {
			if err := s.AuthSvc.Logout(r.Context(), token); err != nil {
				LoggerFrom(r).Warn("logout upstream call failed", "error", err)
			}
		}
		s.Auth.ClearSessionCookie(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

// RegisterHandler creates the identity synchronously; the billing account may
// complete asynchronously via the retry queue, so success is 201 either way.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		var req struct {
			Username string `json:"username" validate:"required,min=3,max=128"`
			Password string `json:"password" validate:"required,min=8,max=1024"`
			Tier     string `json:"tier" validate:"omitempty,max=32"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		userID, _, err := s.Registration.Register(r.Context(), req.Username, req.Password, req.Tier)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"user_id": userID})
	}
}

// ChatHandler runs the chat pipeline for an authenticated user.
func (s *Server) ChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		ident, ok := identityOr401(w, r)
		if !ok {
			return
		}
		var req struct {
			ProjectID string `json:"project_id" validate:"required,max=100"`
			Query     string `json:"query" validate:"required,max=8000"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		ans, err := s.Chat.Chat(r.Context(), ident, req.ProjectID, SanitizeText(req.Query))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		resp := map[string]any{
			"response":   ans.Response,
			"message_id": ans.MessageID,
			"cost":       ans.Cost,
		}
		if ans.Balance != nil {
			resp["balance"] = *ans.Balance
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// BookmarkHandler sets the bookmark flag on an owned turn. Setting the same
// flag twice is a no-op, not an error.
func (s *Server) BookmarkHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := identityOr401(w, r)
		if !ok {
			return
		}
		messageID, ok := pathID(w, r, "message_id")
		if !ok {
			return
		}
		var req struct {
			Bookmarked *bool `json:"bookmarked" validate:"required"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		flag, err := s.Sessions.ToggleBookmark(r.Context(), messageID, ident.UserID, *req.Bookmarked)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message_id": messageID, "bookmarked": flag})
	}
}

// SaveNoteHandler promotes one owned turn into a durable note.
func (s *Server) SaveNoteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := identityOr401(w, r)
		if !ok {
			return
		}
		messageID, ok := pathID(w, r, "message_id")
		if !ok {
			return
		}
		res, err := s.Notes.SaveAsNote(r.Context(), messageID, ident.UserID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// BookmarksHandler lists bookmarked turns for an accessible project.
func (s *Server) BookmarksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := identityOr401(w, r)
		if !ok {
			return
		}
		projectID, ok := pathID(w, r, "project_id")
		if !ok {
			return
		}
		if !s.requireAccess(w, r, projectID, ident.UserID) {
			return
		}
		limit, res := ParseLimit(r.URL.Query().Get("limit"), 50, 200)
		if !res.Valid {
			writeError(w, r, fmt.Errorf("%w: invalid limit", domain.ErrInvalidArgument), res.Errors)
			return
		}
		turns, err := s.Sessions.ListBookmarks(r.Context(), projectID, ident.UserID, limit)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]map[string]any, 0, len(turns))
		for _, t := range turns {
			out = append(out, turnDTO(t))
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookmarks": out})
	}
}

// FeedbackHandler appends one feedback row for an owned message.
func (s *Server) FeedbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		ident, ok := identityOr401(w, r)
		if !ok {
			return
		}
		var req struct {
			MessageID string  `json:"message_id" validate:"required,max=100"`
			Rating    int     `json:"rating" validate:"required,min=1,max=5"`
			Category  *string `json:"category" validate:"omitempty,max=64"`
			Comment   *string `json:"comment" validate:"omitempty,max=4000"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Comment != nil {
			clean := SanitizeText(*req.Comment)
			req.Comment = &clean
		}
		feedbackID, err := s.Feedback.Submit(r.Context(), req.MessageID, ident.UserID, req.Rating, req.Category, req.Comment)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"feedback_id": feedbackID})
	}
}

// GenerateWikiHandler creates and enqueues a wiki generation job.
func (s *Server) GenerateWikiHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := identityOr401(w, r)
		if !ok {
			return
		}
		projectID, ok := pathID(w, r, "project_id")
		if !ok {
			return
		}
		if !s.requireAccess(w, r, projectID, ident.UserID) {
			return
		}
		jobID, err := s.Jobs.CreateAndEnqueue(r.Context(), projectID, ident.UserID, "wiki_generation", usecase.WikiTaskRef, struct{}{})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"job_id": jobID,
			"status": string(domain.JobQueued),
		})
	}
}

// JobHandler returns one job, scoped to its owner.
func (s *Server) JobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := identityOr401(w, r)
		if !ok {
			return
		}
		jobID, ok := pathID(w, r, "job_id")
		if !ok {
			return
		}
		job, err := s.Jobs.Get(r.Context(), jobID, ident.UserID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, jobDTO(job))
	}
}

// ProjectJobsHandler lists a project's jobs for an accessible project.
func (s *Server) ProjectJobsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := identityOr401(w, r)
		if !ok {
			return
		}
		projectID, ok := pathID(w, r, "project_id")
		if !ok {
			return
		}
		if !s.requireAccess(w, r, projectID, ident.UserID) {
			return
		}
		limit, res := ParseLimit(r.URL.Query().Get("limit"), 50, 200)
		if !res.Valid {
			writeError(w, r, fmt.Errorf("%w: invalid limit", domain.ErrInvalidArgument), res.Errors)
			return
		}
		jobs, err := s.Jobs.ListByProject(r.Context(), projectID, ident.UserID, limit)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]map[string]any, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, jobDTO(j))
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
	}
}

// ServicesStatusHandler exposes the circuit snapshot across dependencies.
func (s *Server) ServicesStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"services": s.Breakers.Snapshot()})
	}
}

// RetryRegistrationsHandler runs one registration retry pass on demand, for
// an external scheduler or an operator.
func (s *Server) RetryRegistrationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.Registration.RunRetryPass(r.Context(), 100)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{
			"attempted": result.Attempted,
			"completed": result.Completed,
			"retried":   result.Retried,
			"permanent": result.Permanent,
		})
	}
}

// HealthzHandler is the liveness probe.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler probes the database and, when configured, redis.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 2)
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				checks = append(checks, check{Name: "db", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "db", OK: true})
			}
		}
		if s.RedisCheck != nil {
			if err := s.RedisCheck(ctx); err != nil {
				checks = append(checks, check{Name: "redis", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "redis", OK: true})
			}
		}
		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

func turnDTO(t domain.Turn) map[string]any {
	return map[string]any{
		"message_id":         t.MessageID,
		"project_id":         t.ProjectID,
		"user_query":         t.UserQuery,
		"assistant_response": t.AssistantResponse,
		"created_at":         t.CreatedAt,
		"is_bookmarked":      t.IsBookmarked,
	}
}

func jobDTO(j domain.Job) map[string]any {
	m := map[string]any{
		"job_id":     j.JobID,
		"project_id": j.ProjectID,
		"job_type":   j.JobType,
		"status":     string(j.Status),
		"created_at": j.CreatedAt,
	}
	if j.StartedAt != nil {
		m["started_at"] = *j.StartedAt
	}
	if j.CompletedAt != nil {
		m["completed_at"] = *j.CompletedAt
	}
	if len(j.Result) > 0 {
		m["result"] = json.RawMessage(j.Result)
	}
	if j.Error != nil {
		m["error"] = *j.Error
	}
	return m
}
