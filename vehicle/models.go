package vehicle

import "time"

// VehicleStatus represents the lifecycle state of a vehicle on the lot.
type VehicleStatus string

const (
	StatusPending   VehicleStatus = "pending"
	StatusInventory VehicleStatus = "inventory"
	StatusSold      VehicleStatus = "sold"
	StatusArb       VehicleStatus = "arb"
	StatusWithdrawn VehicleStatus = "withdrawn"
	StatusComplete  VehicleStatus = "complete"
)

// TitleStatus tracks whether the ownership document is physically on hand.
type TitleStatus string

const (
	TitlePresent   TitleStatus = "present"
	TitleInTransit TitleStatus = "in_transit"
	TitleAbsent    TitleStatus = "absent"
)

// Vehicle mirrors the vehicles table. Money fields are integer cents.
type Vehicle struct {
	ID              string
	VIN             string
	StockNumber     string
	Year            int
	Make            string
	Model           string
	Trim            string
	Status          VehicleStatus
	TitleStatus     TitleStatus
	BoughtCents     *int64
	SoldCents       *int64
	ExpenseCents    int64
	AdjustmentCents int64
	BuyerName       *string
	SoldDate        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NetProfitCents returns sold minus bought minus expenses plus purchase-side
// adjustments. Zero-valued prices count as zero.
func (v Vehicle) NetProfitCents() int64 {
	var sold, bought int64
	if v.SoldCents != nil {
		sold = *v.SoldCents
	}
	if v.BoughtCents != nil {
		bought = *v.BoughtCents
	}
	return sold - bought - v.ExpenseCents + v.AdjustmentCents
}

// CreateParams enumerates the fields required to put a vehicle on the books.
type CreateParams struct {
	VIN         string
	StockNumber string
	Year        int
	Make        string
	Model       string
	Trim        string
	TitleStatus TitleStatus
	BoughtCents *int64
}

// SaleParams records a completed sale.
type SaleParams struct {
	VehicleID string
	SoldCents int64
	BuyerName string
	SoldDate  time.Time
}

// ListFilters narrows List results.
type ListFilters struct {
	Status   VehicleStatus
	Page     int
	PageSize int
}
