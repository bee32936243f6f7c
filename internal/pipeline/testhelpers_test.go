package pipeline

import (
	"github.com/shopspring/decimal"

	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

func testCatalog() *Catalog {
	return NewCatalog(
		[]TicketTypeDef{
			{ID: "banquet", Name: "Grand Banquet", UnitPrice: decimal.RequireFromString("115.00"), TotalCapacity: 450},
			{ID: "drinks", Name: "Drinks Reception", UnitPrice: decimal.RequireFromString("35.00"), TotalCapacity: 300},
			{ID: "A", Name: "Type A", UnitPrice: decimal.RequireFromString("10"), TotalCapacity: 100},
			{ID: "B", Name: "Type B", UnitPrice: decimal.Zero, TotalCapacity: 100},
		},
		[]PackageDef{
			{ID: "dinner-pack", Name: "Dinner Pack", Price: decimal.RequireFromString("140.00"), Items: []PackageItem{
				{TicketTypeID: "banquet", Quantity: 1},
				{TicketTypeID: "drinks", Quantity: 1},
			}},
			{ID: "ab-pack", Name: "A+B", Price: decimal.RequireFromString("20"), Items: []PackageItem{
				{TicketTypeID: "A", Quantity: 2},
				{TicketTypeID: "B", Quantity: 1},
			}},
			{ID: "broken-pack", Name: "Broken", Items: []PackageItem{
				{TicketTypeID: "ghost", Quantity: 1},
				{TicketTypeID: "A", Quantity: 0},
			}},
		},
	)
}

func src(idx int) Source {
	return Source{RegistrationID: "reg-1", RegistrationType: enums.RegistrationTypeIndividual, Index: idx}
}

func kinds(anomalies []Anomaly) []enums.AnomalyKind {
	out := make([]enums.AnomalyKind, 0, len(anomalies))
	for _, a := range anomalies {
		out = append(out, a.Kind)
	}
	return out
}

func item(fields map[string]any) dbtypes.LineItem {
	return dbtypes.LineItem(fields)
}
