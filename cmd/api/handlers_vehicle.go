package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"lotdesk/vehicle"
)

type vehicleResponse struct {
	ID              string  `json:"id"`
	VIN             string  `json:"vin"`
	StockNumber     string  `json:"stockNumber"`
	Year            int     `json:"year"`
	Make            string  `json:"make"`
	Model           string  `json:"model"`
	Trim            string  `json:"trim,omitempty"`
	Status          string  `json:"status"`
	TitleStatus     string  `json:"titleStatus"`
	BoughtCents     *int64  `json:"boughtCents,omitempty"`
	SoldCents       *int64  `json:"soldCents,omitempty"`
	ExpenseCents    int64   `json:"expenseCents"`
	AdjustmentCents int64   `json:"adjustmentCents"`
	NetProfitCents  int64   `json:"netProfitCents"`
	BuyerName       *string `json:"buyerName,omitempty"`
	SoldDate        *string `json:"soldDate,omitempty"`
	CreatedAt       string  `json:"createdAt"`
}

func toVehicleResponse(v vehicle.Vehicle) vehicleResponse {
	resp := vehicleResponse{
		ID:              v.ID,
		VIN:             v.VIN,
		StockNumber:     v.StockNumber,
		Year:            v.Year,
		Make:            v.Make,
		Model:           v.Model,
		Trim:            v.Trim,
		Status:          string(v.Status),
		TitleStatus:     string(v.TitleStatus),
		BoughtCents:     v.BoughtCents,
		SoldCents:       v.SoldCents,
		ExpenseCents:    v.ExpenseCents,
		AdjustmentCents: v.AdjustmentCents,
		NetProfitCents:  v.NetProfitCents(),
		BuyerName:       v.BuyerName,
		CreatedAt:       v.CreatedAt.Format(time.RFC3339),
	}
	if v.SoldDate != nil {
		d := v.SoldDate.Format("2006-01-02")
		resp.SoldDate = &d
	}
	return resp
}

type createVehicleRequest struct {
	VIN         string `json:"vin"`
	StockNumber string `json:"stockNumber"`
	Year        int    `json:"year"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Trim        string `json:"trim"`
	TitleStatus string `json:"titleStatus"`
	BoughtCents *int64 `json:"boughtCents"`
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filters := vehicle.ListFilters{
			Status: vehicle.VehicleStatus(r.URL.Query().Get("status")),
		}
		if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
			filters.Page = page
		}
		if size, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil {
			filters.PageSize = size
		}

		vehicles, total, err := s.vehicleService.List(r.Context(), filters)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		items := make([]vehicleResponse, 0, len(vehicles))
		for _, v := range vehicles {
			items = append(items, toVehicleResponse(v))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})

	case http.MethodPost:
		var req createVehicleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "validation", "invalid request body")
			return
		}
		veh, err := s.vehicleService.Create(r.Context(), vehicle.CreateParams{
			VIN:         strings.ToUpper(strings.TrimSpace(req.VIN)),
			StockNumber: req.StockNumber,
			Year:        req.Year,
			Make:        req.Make,
			Model:       req.Model,
			Trim:        req.Trim,
			TitleStatus: vehicle.TitleStatus(req.TitleStatus),
			BoughtCents: req.BoughtCents,
		})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toVehicleResponse(veh))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	vehicles, err := s.vehicleService.ListInventory(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	items := make([]vehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		items = append(items, toVehicleResponse(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

type saleRequest struct {
	SoldCents int64  `json:"soldCents"`
	BuyerName string `json:"buyerName"`
	SoldDate  string `json:"soldDate"`
}

// handleVehicleDetail dispatches /api/vehicles/{id} and its subresources:
// sale, profit, arb, arb/outcome, arb/history.
func (s *Server) handleVehicleDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/vehicles/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "validation", "missing vehicle id")
		return
	}
	vehicleID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		veh, err := s.vehicleService.GetByID(r.Context(), vehicleID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toVehicleResponse(veh))

	case len(parts) == 2 && parts[1] == "sale":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		s.handleSale(w, r, vehicleID)

	case len(parts) == 2 && parts[1] == "profit":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		profit, err := s.reports.VehicleProfit(r.Context(), vehicleID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toProfitResponse(profit))

	case len(parts) == 2 && parts[1] == "arb":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		s.handleOpenArb(w, r, vehicleID)

	case len(parts) == 3 && parts[1] == "arb" && parts[2] == "outcome":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		s.handleProcessOutcome(w, r, vehicleID)

	case len(parts) == 3 && parts[1] == "arb" && parts[2] == "history":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		s.handleArbHistory(w, r, vehicleID)

	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown vehicle resource")
	}
}

func (s *Server) handleSale(w http.ResponseWriter, r *http.Request, vehicleID string) {
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	params := vehicle.SaleParams{
		VehicleID: vehicleID,
		SoldCents: req.SoldCents,
		BuyerName: req.BuyerName,
	}
	if req.SoldDate != "" {
		d, err := time.Parse("2006-01-02", req.SoldDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "soldDate must be YYYY-MM-DD")
			return
		}
		params.SoldDate = d
	}

	veh, err := s.vehicleService.Sell(r.Context(), params)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleResponse(veh))
}
