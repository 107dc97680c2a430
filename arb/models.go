package arb

import (
	"fmt"
	"strings"
	"time"
)

// ArbType distinguishes post-sale disputes from inventory assessments.
type ArbType string

const (
	TypeSold      ArbType = "sold_arb"
	TypeInventory ArbType = "inventory_arb"
)

// Outcome is the resolution state of a case. A record starts pending and
// moves to exactly one terminal outcome; it never returns to pending.
type Outcome string

const (
	OutcomePending         Outcome = "pending"
	OutcomeDenied          Outcome = "denied"
	OutcomePriceAdjustment Outcome = "price_adjustment"
	OutcomeBuyerWithdrew   Outcome = "buyer_withdrew"
	OutcomeWithdrawn       Outcome = "withdrawn"
)

// Record mirrors the arb_records table. Money fields are integer cents.
type Record struct {
	ID                string
	VehicleID         string
	ArbType           ArbType
	Outcome           Outcome
	AdjustmentCents   *int64
	TransportType     *string
	TransportLocation *string
	TransportDate     *time.Time
	TransportCents    *int64
	Notes             string
	CreatedBy         *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ResolvedAt        *time.Time
}

// CaseView joins a record with its vehicle and creator for read endpoints.
type CaseView struct {
	Record
	VIN             string
	StockNumber     string
	Year            int
	Make            string
	Model           string
	VehicleStatus   string
	BuyerName       *string
	CreatorUsername *string
	CreatorFullName *string
}

// ParseArbType accepts both the UI labels ("Sold ARB") and the canonical
// snake forms.
func ParseArbType(raw string) (ArbType, error) {
	switch normalize(raw) {
	case "sold_arb", "sold":
		return TypeSold, nil
	case "inventory_arb", "inventory":
		return TypeInventory, nil
	default:
		return "", fmt.Errorf("arb: unknown arb type %q", raw)
	}
}

// ParseOutcome accepts both the UI labels ("Price Adjustment", "Buyer
// Withdrew") and the canonical snake forms.
func ParseOutcome(raw string) (Outcome, error) {
	switch normalize(raw) {
	case "pending":
		return OutcomePending, nil
	case "denied":
		return OutcomeDenied, nil
	case "price_adjustment":
		return OutcomePriceAdjustment, nil
	case "buyer_withdrew":
		return OutcomeBuyerWithdrew, nil
	case "withdrawn":
		return OutcomeWithdrawn, nil
	default:
		return "", fmt.Errorf("arb: unknown outcome %q", raw)
	}
}

func normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
