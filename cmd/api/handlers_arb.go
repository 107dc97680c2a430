package main

import (
	"net/http"
	"strings"
	"time"

	"lotdesk/arb"
)

type arbVehicleSummary struct {
	VIN         string  `json:"vin"`
	StockNumber string  `json:"stockNumber"`
	Year        int     `json:"year"`
	Make        string  `json:"make"`
	Model       string  `json:"model"`
	Status      string  `json:"status"`
	BuyerName   *string `json:"buyerName,omitempty"`
}

type arbResponse struct {
	ID                string             `json:"id"`
	VehicleID         string             `json:"vehicleId"`
	ArbType           string             `json:"arbType"`
	Outcome           string             `json:"outcome"`
	AdjustmentCents   *int64             `json:"adjustmentCents,omitempty"`
	TransportType     *string            `json:"transportType,omitempty"`
	TransportLocation *string            `json:"transportLocation,omitempty"`
	TransportDate     *string            `json:"transportDate,omitempty"`
	TransportCents    *int64             `json:"transportCostCents,omitempty"`
	Notes             string             `json:"notes,omitempty"`
	CreatedBy         *string            `json:"createdBy,omitempty"`
	CreatedByName     string             `json:"createdByName,omitempty"`
	CreatedAt         string             `json:"createdAt"`
	ResolvedAt        *string            `json:"resolvedAt,omitempty"`
	Vehicle           *arbVehicleSummary `json:"vehicle,omitempty"`
}

func toArbResponse(rec arb.Record) arbResponse {
	resp := arbResponse{
		ID:                rec.ID,
		VehicleID:         rec.VehicleID,
		ArbType:           string(rec.ArbType),
		Outcome:           string(rec.Outcome),
		AdjustmentCents:   rec.AdjustmentCents,
		TransportType:     rec.TransportType,
		TransportLocation: rec.TransportLocation,
		TransportCents:    rec.TransportCents,
		Notes:             rec.Notes,
		CreatedBy:         rec.CreatedBy,
		CreatedAt:         rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.TransportDate != nil {
		d := rec.TransportDate.Format("2006-01-02")
		resp.TransportDate = &d
	}
	if rec.ResolvedAt != nil {
		ts := rec.ResolvedAt.Format(time.RFC3339)
		resp.ResolvedAt = &ts
	}
	return resp
}

func toArbCaseResponse(view arb.CaseView) arbResponse {
	resp := toArbResponse(view.Record)
	resp.Vehicle = &arbVehicleSummary{
		VIN:         view.VIN,
		StockNumber: view.StockNumber,
		Year:        view.Year,
		Make:        view.Make,
		Model:       view.Model,
		Status:      view.VehicleStatus,
		BuyerName:   view.BuyerName,
	}
	if view.CreatorFullName != nil && *view.CreatorFullName != "" {
		resp.CreatedByName = *view.CreatorFullName
	} else if view.CreatorUsername != nil {
		resp.CreatedByName = *view.CreatorUsername
	}
	return resp
}

func (s *Server) handleArbList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	views, err := s.arbViews.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	items := make([]arbResponse, 0, len(views))
	for _, v := range views {
		items = append(items, toArbCaseResponse(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleArbDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	recordID := strings.TrimPrefix(r.URL.Path, "/api/arb/")
	if recordID == "" || strings.Contains(recordID, "/") {
		writeError(w, http.StatusBadRequest, "validation", "invalid arb case path")
		return
	}

	view, err := s.arbViews.GetByID(r.Context(), recordID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toArbCaseResponse(view))
}

type openArbRequest struct {
	ArbType string `json:"arb_type"`
	Notes   string `json:"notes"`
}

func (s *Server) handleOpenArb(w http.ResponseWriter, r *http.Request, vehicleID string) {
	var req openArbRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	arbType, err := arb.ParseArbType(req.ArbType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	rec, err := s.arbService.Open(r.Context(), arb.OpenParams{
		VehicleID: vehicleID,
		ArbType:   arbType,
		Notes:     req.Notes,
		CreatedBy: requestUserID(r),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toArbResponse(rec))
}

// outcomeRequest mirrors the submission body. Money fields are integer
// cents.
type outcomeRequest struct {
	ArbType           string  `json:"arb_type"`
	Outcome           string  `json:"outcome"`
	AdjustmentCents   *int64  `json:"adjustment_amount"`
	TransportType     *string `json:"transport_type"`
	TransportLocation *string `json:"transport_location"`
	TransportDate     *string `json:"transport_date"`
	TransportCents    *int64  `json:"transport_cost"`
	Notes             string  `json:"notes"`
}

func (s *Server) handleProcessOutcome(w http.ResponseWriter, r *http.Request, vehicleID string) {
	var req outcomeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	arbType, err := arb.ParseArbType(req.ArbType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	outcome, err := arb.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	params := arb.ProcessParams{
		VehicleID:         vehicleID,
		ArbType:           arbType,
		Outcome:           outcome,
		AdjustmentCents:   req.AdjustmentCents,
		TransportType:     req.TransportType,
		TransportLocation: req.TransportLocation,
		TransportCents:    req.TransportCents,
		Notes:             req.Notes,
		ActorID:           requestUserID(r),
	}
	if req.TransportDate != nil && *req.TransportDate != "" {
		d, err := time.Parse("2006-01-02", *req.TransportDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "transport_date must be YYYY-MM-DD")
			return
		}
		params.TransportDate = &d
	}

	rec, err := s.arbService.ProcessOutcome(r.Context(), params)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.metrics.recordOutcome(string(rec.Outcome))
	writeJSON(w, http.StatusOK, toArbResponse(rec))
}

func (s *Server) handleArbHistory(w http.ResponseWriter, r *http.Request, vehicleID string) {
	views, err := s.arbViews.HistoryForVehicle(r.Context(), vehicleID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	items := make([]arbResponse, 0, len(views))
	for _, v := range views {
		items = append(items, toArbCaseResponse(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}
