package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketType is the sellable inventory unit. Name, price and capacity are owned
// by the catalog; the count columns are derived by recompute.
type TicketType struct {
	ID               string          `gorm:"column:ticket_type_id;primaryKey"`
	Name             string          `gorm:"column:name;not null"`
	UnitPrice        decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null;default:0"`
	TotalCapacity    int             `gorm:"column:total_capacity;not null;default:0"`
	SoldCount        int             `gorm:"column:sold_count;not null;default:0"`
	ReservedCount    int             `gorm:"column:reserved_count;not null;default:0"`
	TransferredCount int             `gorm:"column:transferred_count;not null;default:0"`
	CancelledCount   int             `gorm:"column:cancelled_count;not null;default:0"`
	AvailableCount   int             `gorm:"column:available_count;not null;default:0"`
	UtilizationRate  decimal.Decimal `gorm:"column:utilization_rate;type:numeric(6,1);not null;default:0"`
	LastComputedAt   *time.Time      `gorm:"column:last_computed_at"`
}

func (TicketType) TableName() string { return "ticket_types" }
