package main

import (
	"net/http"
	"strings"
	"time"

	"lotdesk/task"
)

type taskResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Notes       string  `json:"notes,omitempty"`
	AssigneeID  *string `json:"assigneeId,omitempty"`
	VehicleID   *string `json:"vehicleId,omitempty"`
	DueAt       *string `json:"dueAt,omitempty"`
	Status      string  `json:"status"`
	CreatedBy   *string `json:"createdBy,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	CompletedAt *string `json:"completedAt,omitempty"`
}

func toTaskResponse(rec task.Record) taskResponse {
	resp := taskResponse{
		ID:         rec.ID,
		Title:      rec.Title,
		Notes:      rec.Notes,
		AssigneeID: rec.AssigneeID,
		VehicleID:  rec.VehicleID,
		Status:     string(rec.Status),
		CreatedBy:  rec.CreatedBy,
		CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.DueAt != nil {
		d := rec.DueAt.Format(time.RFC3339)
		resp.DueAt = &d
	}
	if rec.CompletedAt != nil {
		d := rec.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &d
	}
	return resp
}

type createTaskRequest struct {
	Title      string  `json:"title"`
	Notes      string  `json:"notes"`
	AssigneeID *string `json:"assigneeId"`
	VehicleID  *string `json:"vehicleId"`
	DueAt      *string `json:"dueAt"`
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filters := task.ListFilters{
			AssigneeID: r.URL.Query().Get("assigneeId"),
			Status:     task.Status(r.URL.Query().Get("status")),
		}
		tasks, err := s.taskService.List(r.Context(), filters)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		items := make([]taskResponse, 0, len(tasks))
		for _, rec := range tasks {
			items = append(items, toTaskResponse(rec))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})

	case http.MethodPost:
		var req createTaskRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "validation", "invalid request body")
			return
		}
		params := task.CreateParams{
			Title:      req.Title,
			Notes:      req.Notes,
			AssigneeID: req.AssigneeID,
			VehicleID:  req.VehicleID,
			CreatedBy:  requestUserID(r),
		}
		if req.DueAt != nil && *req.DueAt != "" {
			d, err := time.Parse(time.RFC3339, *req.DueAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "validation", "dueAt must be RFC3339")
				return
			}
			params.DueAt = &d
		}
		rec, err := s.taskService.Create(r.Context(), params)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toTaskResponse(rec))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleTaskDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "validation", "missing task id")
		return
	}
	taskID := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "complete" && r.Method == http.MethodPost:
		rec, err := s.taskService.Complete(r.Context(), taskID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTaskResponse(rec))

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.taskService.Delete(r.Context(), taskID); err != nil {
			s.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
