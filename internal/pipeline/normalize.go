package pipeline

import (
	"fmt"

	"github.com/shopspring/decimal"

	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

// Source locates a raw line item within its registration.
type Source struct {
	RegistrationID   string
	RegistrationType enums.RegistrationType
	Index            int
}

// Item is a normalized line item. It is never persisted.
type Item struct {
	RegistrationID string
	Index          int
	TicketTypeID   string
	Quantity       int
	Bucket         enums.Bucket
	UnitPrice      decimal.Decimal
	// PackageID is set on items produced by package expansion.
	PackageID string
	// Owner holds the owner linkage keys copied from the raw item.
	Owner map[string]any
}

// FromPackage reports whether the item came from a package expansion.
func (i Item) FromPackage() bool {
	return i.PackageID != ""
}

// IsPackageItem reports whether a raw line item is a package purchase. Items
// carrying only a package reference count as packages even without the flag.
func IsPackageItem(raw dbtypes.LineItem) bool {
	if _, flag, ok := PackageFlagKeys.Lookup(raw); ok && asBool(flag) {
		return true
	}
	if _, _, ok := TicketTypeKeys.LookupString(raw); ok {
		return false
	}
	_, _, ok := PackageKeys.LookupString(raw)
	return ok
}

// Normalize canonicalizes one raw line item. Package purchases and items
// without a ticket type reference yield no item; the latter report an anomaly.
func Normalize(raw dbtypes.LineItem, src Source) (Item, bool, []Anomaly) {
	if IsPackageItem(raw) {
		return Item{}, false, nil
	}

	_, ticketTypeID, ok := TicketTypeKeys.LookupString(raw)
	if !ok {
		return Item{}, false, []Anomaly{newAnomaly(src, enums.AnomalyUnresolvedTicketType, "", "", "no ticket type key")}
	}

	var anomalies []Anomaly
	quantity, qa := resolveQuantity(raw, src, ticketTypeID, "")
	anomalies = append(anomalies, qa...)

	price, pa := resolvePrice(raw, src, ticketTypeID)
	anomalies = append(anomalies, pa...)

	return Item{
		RegistrationID: src.RegistrationID,
		Index:          src.Index,
		TicketTypeID:   ticketTypeID,
		Quantity:       quantity,
		Bucket:         ResolveBucket(raw),
		UnitPrice:      price,
		Owner:          resolveOwner(raw, src.RegistrationType),
	}, true, anomalies
}

// resolveQuantity returns the purchased quantity, defaulting to 1 when absent or invalid.
func resolveQuantity(raw dbtypes.LineItem, src Source, ticketTypeID, packageID string) (int, []Anomaly) {
	key, value, ok := QuantityKeys.Lookup(raw)
	if !ok {
		return 1, nil
	}
	n, ok := asInt(value)
	if ok && n >= 1 {
		return n, nil
	}
	detail := fmt.Sprintf("%s=%v", key, value)
	return 1, []Anomaly{newAnomaly(src, enums.AnomalyInvalidQuantity, ticketTypeID, packageID, detail)}
}

func resolvePrice(raw dbtypes.LineItem, src Source, ticketTypeID string) (decimal.Decimal, []Anomaly) {
	key, value, ok := PriceKeys.Lookup(raw)
	if !ok {
		return decimal.Zero, nil
	}
	price, ok := asDecimal(value)
	if ok && !price.IsNegative() {
		return price, nil
	}
	detail := fmt.Sprintf("%s=%v", key, value)
	return decimal.Zero, []Anomaly{newAnomaly(src, enums.AnomalyUnparseablePrice, ticketTypeID, "", detail)}
}

// ResolveBucket classifies the status of a raw line item.
func ResolveBucket(raw dbtypes.LineItem) enums.Bucket {
	_, status, ok := StatusKeys.LookupString(raw)
	if !ok {
		return enums.BucketSold
	}
	return ClassifyStatus(status)
}

func resolveOwner(raw dbtypes.LineItem, regType enums.RegistrationType) map[string]any {
	owner := map[string]any{}
	for _, key := range OwnerKeys.Keys {
		if value, ok := raw[key]; ok && !isEmpty(value) {
			owner[key] = value
		}
	}
	if _, ok := owner["ownerType"]; !ok && len(owner) > 0 {
		if regType.IsGroup() {
			owner["ownerType"] = string(enums.RegistrationTypeLodge)
		} else {
			owner["ownerType"] = "attendee"
		}
	}
	return owner
}

func newAnomaly(src Source, kind enums.AnomalyKind, ticketTypeID, packageID, detail string) Anomaly {
	return Anomaly{
		Kind:           kind,
		RegistrationID: src.RegistrationID,
		ItemIndex:      src.Index,
		TicketTypeID:   ticketTypeID,
		PackageID:      packageID,
		Detail:         detail,
	}
}
