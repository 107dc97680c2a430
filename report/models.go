package report

import "time"

// VehicleProfit captures the per-vehicle financial projection exposed by the
// reporting endpoints.
type VehicleProfit struct {
	VehicleID       string
	VIN             string
	StockNumber     string
	Year            int
	Make            string
	Model           string
	Status          string
	BoughtCents     *int64
	SoldCents       *int64
	ExpenseCents    int64
	AdjustmentCents int64
	NetProfitCents  int64
	SoldDate        *time.Time
}

// MonthlySummary aggregates sales by calendar month.
type MonthlySummary struct {
	Month           string // YYYY-MM
	VehiclesSold    int
	RevenueCents    int64
	ExpenseCents    int64
	NetProfitCents  int64
	AvgProfitCents  int64
	ArbCasesOpened  int
	ArbCasesPending int
}
