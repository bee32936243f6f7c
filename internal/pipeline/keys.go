package pipeline

import (
	"strings"

	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
)

// KeySet lists the historical spellings of one logical line item field in
// priority order. The first key is the canonical spelling.
type KeySet struct {
	Field string
	Keys  []string
}

// Canonical returns the preferred key for the field.
func (k KeySet) Canonical() string {
	return k.Keys[0]
}

// Lookup returns the first key whose value is present and non-empty.
func (k KeySet) Lookup(raw dbtypes.LineItem) (string, any, bool) {
	for _, key := range k.Keys {
		value, ok := raw[key]
		if !ok || isEmpty(value) {
			continue
		}
		return key, value, true
	}
	return "", nil, false
}

// New spellings are appended to the end of the relevant list.
var (
	TicketTypeKeys = KeySet{Field: "ticketType", Keys: []string{
		"ticketTypeId", "eventTicketId", "eventTicketID", "ticketDefinitionId", "event_ticket_id", "ticket_type_id",
	}}
	PackageKeys = KeySet{Field: "package", Keys: []string{
		"packageId", "eventPackageId", "package_id",
	}}
	PackageFlagKeys = KeySet{Field: "isPackage", Keys: []string{
		"isPackage", "is_package",
	}}
	QuantityKeys = KeySet{Field: "quantity", Keys: []string{
		"quantity", "qty", "Quantity",
	}}
	PriceKeys = KeySet{Field: "price", Keys: []string{
		"price", "unitPrice", "pricePaid", "ticketPrice",
	}}
	StatusKeys = KeySet{Field: "status", Keys: []string{
		"status", "ticketStatus", "Status",
	}}
	OwnerKeys = KeySet{Field: "owner", Keys: []string{
		"ownerId", "ownerType", "attendeeId", "lodgeId", "organisationId", "contactId",
	}}
)

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

// LookupString returns the first key whose value decodes to a non-empty string.
func (k KeySet) LookupString(raw dbtypes.LineItem) (string, string, bool) {
	for _, key := range k.Keys {
		value, ok := raw[key]
		if !ok {
			continue
		}
		if s, ok := asString(value); ok {
			return key, s, true
		}
	}
	return "", "", false
}
