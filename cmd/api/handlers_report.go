package main

import (
	"net/http"
	"strconv"

	"lotdesk/report"
)

type profitResponse struct {
	VehicleID       string  `json:"vehicleId"`
	VIN             string  `json:"vin"`
	StockNumber     string  `json:"stockNumber"`
	Year            int     `json:"year"`
	Make            string  `json:"make"`
	Model           string  `json:"model"`
	Status          string  `json:"status"`
	BoughtCents     *int64  `json:"boughtCents,omitempty"`
	SoldCents       *int64  `json:"soldCents,omitempty"`
	ExpenseCents    int64   `json:"expenseCents"`
	AdjustmentCents int64   `json:"adjustmentCents"`
	NetProfitCents  int64   `json:"netProfitCents"`
	SoldDate        *string `json:"soldDate,omitempty"`
}

func toProfitResponse(p report.VehicleProfit) profitResponse {
	resp := profitResponse{
		VehicleID:       p.VehicleID,
		VIN:             p.VIN,
		StockNumber:     p.StockNumber,
		Year:            p.Year,
		Make:            p.Make,
		Model:           p.Model,
		Status:          p.Status,
		BoughtCents:     p.BoughtCents,
		SoldCents:       p.SoldCents,
		ExpenseCents:    p.ExpenseCents,
		AdjustmentCents: p.AdjustmentCents,
		NetProfitCents:  p.NetProfitCents,
	}
	if p.SoldDate != nil {
		d := p.SoldDate.Format("2006-01-02")
		resp.SoldDate = &d
	}
	return resp
}

type summaryResponse struct {
	Month           string `json:"month"`
	VehiclesSold    int    `json:"vehiclesSold"`
	RevenueCents    int64  `json:"revenueCents"`
	ExpenseCents    int64  `json:"expenseCents"`
	NetProfitCents  int64  `json:"netProfitCents"`
	AvgProfitCents  int64  `json:"avgProfitCents"`
	ArbCasesOpened  int    `json:"arbCasesOpened"`
	ArbCasesPending int    `json:"arbCasesPending"`
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	switch r.URL.Path {
	case "/api/reports/profits":
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		profits, err := s.reports.SoldProfits(r.Context(), limit)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		items := make([]profitResponse, 0, len(profits))
		for _, p := range profits {
			items = append(items, toProfitResponse(p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})

	case "/api/reports/monthly":
		months, _ := strconv.Atoi(r.URL.Query().Get("months"))
		summaries, err := s.reports.MonthlySummaries(r.Context(), months)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		items := make([]summaryResponse, 0, len(summaries))
		for _, m := range summaries {
			items = append(items, summaryResponse{
				Month:           m.Month,
				VehiclesSold:    m.VehiclesSold,
				RevenueCents:    m.RevenueCents,
				ExpenseCents:    m.ExpenseCents,
				NetProfitCents:  m.NetProfitCents,
				AvgProfitCents:  m.AvgProfitCents,
				ArbCasesOpened:  m.ArbCasesOpened,
				ArbCasesPending: m.ArbCasesPending,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})

	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown report")
	}
}
