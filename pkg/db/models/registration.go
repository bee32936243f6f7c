package models

import (
	"time"

	"github.com/shopspring/decimal"

	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

// Registration is one purchase transaction. The engine reads it and only the
// backfill utility rewrites line_items.
type Registration struct {
	ID               string                 `gorm:"column:registration_id;primaryKey"`
	RegistrationType enums.RegistrationType `gorm:"column:registration_type;not null;default:individual"`
	LineItems        dbtypes.LineItems      `gorm:"column:line_items;type:jsonb;not null"`
	PaymentTotal     decimal.NullDecimal    `gorm:"column:payment_total;type:numeric(12,2)"`
	Version          int64                  `gorm:"column:version;not null;default:1"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Registration) TableName() string { return "registrations" }
