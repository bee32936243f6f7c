package models

import (
	"github.com/shopspring/decimal"

	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
)

// Package bundles several ticket types sold under one price.
type Package struct {
	ID            string                `gorm:"column:package_id;primaryKey"`
	Name          string                `gorm:"column:name;not null"`
	Price         decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	IncludedItems dbtypes.IncludedItems `gorm:"column:included_items;type:jsonb;not null"`
}

func (Package) TableName() string { return "packages" }
