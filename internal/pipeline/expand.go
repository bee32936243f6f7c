package pipeline

import (
	"fmt"

	"github.com/shopspring/decimal"

	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

// Lookup is the read-only catalog surface used by expansion.
type Lookup interface {
	TicketType(id string) (TicketTypeDef, bool)
	Package(id string) (PackageDef, bool)
}

// Expand turns a package purchase into one item per constituent ticket type,
// in package definition order. Each item carries the package's bucket and
// owner linkage. Unknown packages yield nothing; unknown constituents are
// skipped individually.
func Expand(raw dbtypes.LineItem, src Source, catalog Lookup) ([]Item, []Anomaly) {
	_, packageID, ok := PackageKeys.LookupString(raw)
	if !ok {
		return nil, []Anomaly{newAnomaly(src, enums.AnomalyUnresolvedPackageReference, "", "", "package item without package key")}
	}

	purchased, anomalies := resolveQuantity(raw, src, "", packageID)

	def, ok := catalog.Package(packageID)
	if !ok {
		return nil, append(anomalies, newAnomaly(src, enums.AnomalyUnknownPackage, "", packageID, ""))
	}

	bucket := ResolveBucket(raw)
	owner := resolveOwner(raw, src.RegistrationType)

	items := make([]Item, 0, len(def.Items))
	for _, included := range def.Items {
		if _, known := catalog.TicketType(included.TicketTypeID); !known {
			anomalies = append(anomalies, newAnomaly(src, enums.AnomalyUnknownPackageConstituent, included.TicketTypeID, packageID, ""))
			continue
		}
		per := included.Quantity
		if per < 1 {
			anomalies = append(anomalies, newAnomaly(src, enums.AnomalyInvalidIncludedQuantity, included.TicketTypeID, packageID,
				fmt.Sprintf("includedQuantity=%d", included.Quantity)))
			per = 1
		}
		items = append(items, Item{
			RegistrationID: src.RegistrationID,
			Index:          src.Index,
			TicketTypeID:   included.TicketTypeID,
			Quantity:       per * purchased,
			Bucket:         bucket,
			UnitPrice:      decimal.Zero,
			PackageID:      packageID,
			Owner:          copyOwner(owner),
		})
	}
	return items, anomalies
}

// PurchasedPackage returns the package id and purchased quantity of a package
// item, or false when the item has no package reference.
func PurchasedPackage(raw dbtypes.LineItem) (string, int, bool) {
	_, packageID, ok := PackageKeys.LookupString(raw)
	if !ok {
		return "", 0, false
	}
	quantity, _ := resolveQuantity(raw, Source{}, "", packageID)
	return packageID, quantity, true
}

func copyOwner(owner map[string]any) map[string]any {
	out := make(map[string]any, len(owner))
	for k, v := range owner {
		out[k] = v
	}
	return out
}
