package pipeline

import (
	"github.com/lodgetix/ticket-inventory/pkg/db/models"
	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

// Result holds the normalized items and anomalies of one registration.
type Result struct {
	Items     []Item
	Anomalies []Anomaly
}

// Run passes a stored registration through normalization and expansion.
func Run(reg models.Registration, catalog *Catalog) Result {
	return RunItems(reg.ID, reg.RegistrationType, reg.LineItems, catalog)
}

// RunItems passes a raw line item array through normalization and expansion
// and tags items that disagree with the catalog.
func RunItems(registrationID string, regType enums.RegistrationType, items dbtypes.LineItems, catalog *Catalog) Result {
	if !regType.IsValid() {
		regType = enums.RegistrationTypeIndividual
	}

	var res Result
	for idx, raw := range items {
		if raw == nil {
			continue
		}
		src := Source{RegistrationID: registrationID, RegistrationType: regType, Index: idx}

		if IsPackageItem(raw) {
			expanded, anomalies := Expand(raw, src, catalog)
			res.Items = append(res.Items, expanded...)
			res.Anomalies = append(res.Anomalies, anomalies...)
			continue
		}

		item, ok, anomalies := Normalize(raw, src)
		res.Anomalies = append(res.Anomalies, anomalies...)
		if !ok {
			continue
		}
		res.Items = append(res.Items, item)
		res.Anomalies = append(res.Anomalies, checkAgainstCatalog(item, src, catalog)...)
	}
	return res
}

func checkAgainstCatalog(item Item, src Source, catalog *Catalog) []Anomaly {
	def, ok := catalog.TicketType(item.TicketTypeID)
	if !ok {
		return []Anomaly{newAnomaly(src, enums.AnomalyUnknownTicketType, item.TicketTypeID, "", "")}
	}
	if item.UnitPrice.IsZero() {
		if !def.UnitPrice.IsZero() {
			return []Anomaly{newAnomaly(src, enums.AnomalyZeroPrice, item.TicketTypeID, "", "canonical="+def.UnitPrice.StringFixed(2))}
		}
		return nil
	}
	if !item.UnitPrice.Equal(def.UnitPrice) {
		detail := "price=" + item.UnitPrice.StringFixed(2) + " canonical=" + def.UnitPrice.StringFixed(2)
		return []Anomaly{newAnomaly(src, enums.AnomalyPriceMismatch, item.TicketTypeID, "", detail)}
	}
	return nil
}

// TicketTypeIDs returns the distinct ticket types the items touch.
func (r Result) TicketTypeIDs() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, item := range r.Items {
		if _, ok := seen[item.TicketTypeID]; ok {
			continue
		}
		seen[item.TicketTypeID] = struct{}{}
		out = append(out, item.TicketTypeID)
	}
	return out
}

// ItemsFor returns the items routed to one ticket type.
func (r Result) ItemsFor(ticketTypeID string) []Item {
	var out []Item
	for _, item := range r.Items {
		if item.TicketTypeID == ticketTypeID {
			out = append(out, item)
		}
	}
	return out
}
