package pipeline

import (
	"fmt"
	"sort"

	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

// Anomaly is a non-fatal data quality issue attached to one raw line item.
type Anomaly struct {
	Kind           enums.AnomalyKind `json:"kind"`
	RegistrationID string            `json:"registrationId"`
	ItemIndex      int               `json:"itemIndex"`
	TicketTypeID   string            `json:"ticketTypeId,omitempty"`
	PackageID      string            `json:"packageId,omitempty"`
	Detail         string            `json:"detail,omitempty"`
}

func (a Anomaly) key() string {
	return fmt.Sprintf("%s|%d|%s|%s|%s", a.RegistrationID, a.ItemIndex, a.Kind, a.TicketTypeID, a.PackageID)
}

// DedupeAnomalies drops repeats of the same issue on the same item and returns
// the rest ordered by registration, item index and kind.
func DedupeAnomalies(anomalies []Anomaly) []Anomaly {
	seen := make(map[string]struct{}, len(anomalies))
	out := make([]Anomaly, 0, len(anomalies))
	for _, a := range anomalies {
		k := a.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RegistrationID != out[j].RegistrationID {
			return out[i].RegistrationID < out[j].RegistrationID
		}
		if out[i].ItemIndex != out[j].ItemIndex {
			return out[i].ItemIndex < out[j].ItemIndex
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// CountByKind tallies anomalies per kind.
func CountByKind(anomalies []Anomaly) map[enums.AnomalyKind]int {
	out := make(map[enums.AnomalyKind]int)
	for _, a := range anomalies {
		out[a.Kind]++
	}
	return out
}
