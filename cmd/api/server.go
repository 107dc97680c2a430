package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"lotdesk/arb"
	"lotdesk/auth"
	"lotdesk/chat"
	"lotdesk/report"
	"lotdesk/task"
	"lotdesk/vehicle"
)

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyRole
)

type tokenVerifier interface {
	VerifyToken(token string) (string, auth.Role, error)
}

type accountService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
}

type userManager interface {
	List(ctx context.Context) ([]auth.User, error)
	Get(ctx context.Context, userID string) (auth.User, error)
	Create(ctx context.Context, req auth.CreateUserRequest) (auth.User, error)
	Update(ctx context.Context, userID string, req auth.UpdateUserRequest) (auth.User, error)
	Delete(ctx context.Context, userID string) error
}

type vehicleService interface {
	Create(ctx context.Context, params vehicle.CreateParams) (vehicle.Vehicle, error)
	GetByID(ctx context.Context, id string) (vehicle.Vehicle, error)
	List(ctx context.Context, filters vehicle.ListFilters) ([]vehicle.Vehicle, int, error)
	ListInventory(ctx context.Context) ([]vehicle.Vehicle, error)
	Sell(ctx context.Context, params vehicle.SaleParams) (vehicle.Vehicle, error)
}

type arbService interface {
	Open(ctx context.Context, params arb.OpenParams) (arb.Record, error)
	ProcessOutcome(ctx context.Context, params arb.ProcessParams) (arb.Record, error)
}

type arbViewer interface {
	List(ctx context.Context) ([]arb.CaseView, error)
	GetByID(ctx context.Context, recordID string) (arb.CaseView, error)
	HistoryForVehicle(ctx context.Context, vehicleID string) ([]arb.CaseView, error)
}

type taskService interface {
	Create(ctx context.Context, params task.CreateParams) (task.Record, error)
	List(ctx context.Context, filters task.ListFilters) ([]task.Record, error)
	Complete(ctx context.Context, taskID string) (task.Record, error)
	Delete(ctx context.Context, taskID string) error
}

type chatStore interface {
	Send(ctx context.Context, params chat.SendParams) (chat.Message, error)
	History(ctx context.Context, conversationID string, limit int) ([]chat.Message, error)
}

type reportReader interface {
	VehicleProfit(ctx context.Context, vehicleID string) (report.VehicleProfit, error)
	SoldProfits(ctx context.Context, limit int) ([]report.VehicleProfit, error)
	MonthlySummaries(ctx context.Context, months int) ([]report.MonthlySummary, error)
}

// Server wires the HTTP surface over the domain services.
type Server struct {
	log *logrus.Logger

	accounts       accountService
	verifier       tokenVerifier
	users          userManager
	vehicleService vehicleService
	arbService     arbService
	arbViews       arbViewer
	taskService    taskService
	chatStore      chatStore
	feed           *chat.Feed
	reports        reportReader

	metrics  *apiMetrics
	upgrader websocket.Upgrader
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)

	mux.Handle("/api/arb", s.requireAuth(s.handleArbList))
	mux.Handle("/api/arb/", s.requireAuth(s.handleArbDetail))
	mux.Handle("/api/vehicles", s.requireAuth(s.handleVehicles))
	mux.Handle("/api/vehicles/", s.requireAuth(s.handleVehicleDetail))
	mux.Handle("/api/inventory", s.requireAuth(s.handleInventory))
	mux.Handle("/api/users", s.requireAuth(s.requireAdmin(s.handleUsers)))
	mux.Handle("/api/users/", s.requireAuth(s.requireAdmin(s.handleUserDetail)))
	mux.Handle("/api/tasks", s.requireAuth(s.handleTasks))
	mux.Handle("/api/tasks/", s.requireAuth(s.handleTaskDetail))
	mux.Handle("/api/chat/", s.requireAuth(s.handleChat))
	mux.Handle("/api/reports/", s.requireAuth(s.handleReports))

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.handler())
	}

	var h http.Handler = mux
	if s.metrics != nil {
		h = s.metrics.instrument(h)
	}
	return s.logRequests(h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeServiceError maps domain sentinels onto the HTTP taxonomy: validation
// 400, auth 401, forbidden 403, not found 404, conflict 409, everything else
// 500 with the cause logged but not leaked.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vehicle.ErrInvalidInput),
		errors.Is(err, task.ErrInvalidInput),
		errors.Is(err, arb.ErrOutcomeRequired),
		errors.Is(err, arb.ErrInvalidOutcome),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, chat.ErrEmptyBody),
		errors.Is(err, chat.ErrMissingSender),
		errors.Is(err, chat.ErrMissingConvoID):
		writeError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrAccountInactive):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, auth.ErrProtectedAdmin),
		errors.Is(err, auth.ErrRoleEscalation):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, vehicle.ErrNotFound),
		errors.Is(err, arb.ErrNotFound),
		errors.Is(err, arb.ErrVehicleNotFound),
		errors.Is(err, task.ErrNotFound),
		errors.Is(err, report.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, arb.ErrAlreadyProcessed),
		errors.Is(err, arb.ErrPendingExists),
		errors.Is(err, arb.ErrWrongVehicleState),
		errors.Is(err, vehicle.ErrDuplicateVIN),
		errors.Is(err, vehicle.ErrNotSellable),
		errors.Is(err, task.ErrBadStatus),
		errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, auth.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		if s.log != nil {
			s.log.WithError(err).Error("request failed")
		}
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
