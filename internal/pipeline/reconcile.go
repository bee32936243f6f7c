package pipeline

import "github.com/shopspring/decimal"

// Snapshot is the derived field group written for one ticket type.
type Snapshot struct {
	TicketTypeID     string          `json:"ticketTypeId"`
	SoldCount        int             `json:"soldCount"`
	ReservedCount    int             `json:"reservedCount"`
	TransferredCount int             `json:"transferredCount"`
	CancelledCount   int             `json:"cancelledCount"`
	AvailableCount   int             `json:"availableCount"`
	UtilizationRate  decimal.Decimal `json:"utilizationRate"`
}

var hundred = decimal.NewFromInt(100)

// Reconcile combines bucket sums with capacity. Overbooked types clamp to
// zero availability.
func Reconcile(ticketTypeID string, totalCapacity int, counts Counts) Snapshot {
	available := totalCapacity - counts.Sold - counts.Reserved
	if available < 0 {
		available = 0
	}

	utilization := decimal.Zero
	if totalCapacity > 0 {
		utilization = decimal.NewFromInt(int64(counts.Sold)).
			Mul(hundred).
			DivRound(decimal.NewFromInt(int64(totalCapacity)), 1)
	}

	return Snapshot{
		TicketTypeID:     ticketTypeID,
		SoldCount:        counts.Sold,
		ReservedCount:    counts.Reserved,
		TransferredCount: counts.Transferred,
		CancelledCount:   counts.Cancelled,
		AvailableCount:   available,
		UtilizationRate:  utilization,
	}
}

// Equal compares every derived field.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.TicketTypeID == other.TicketTypeID &&
		s.SoldCount == other.SoldCount &&
		s.ReservedCount == other.ReservedCount &&
		s.TransferredCount == other.TransferredCount &&
		s.CancelledCount == other.CancelledCount &&
		s.AvailableCount == other.AvailableCount &&
		s.UtilizationRate.Equal(other.UtilizationRate)
}
