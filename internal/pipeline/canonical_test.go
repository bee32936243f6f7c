package pipeline

import (
	"encoding/json"
	"testing"

	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
)

func TestCanonicalizeMovesVariantKeys(t *testing.T) {
	raw := dbtypes.LineItem{
		"eventTicketId":   "banquet",
		"event_ticket_id": "banquet",
		"qty":             json.Number("2"),
		"pricePaid":       map[string]any{"$numberDecimal": "115.00"},
		"ticketStatus":    " Paid ",
		"attendeeId":      "att-1",
		"seat":            "A12",
	}
	out, changes := Canonicalize(raw)

	if out["ticketTypeId"] != "banquet" {
		t.Fatalf("expected canonical ticket key, got %v", out)
	}
	if _, ok := out["eventTicketId"]; ok {
		t.Fatalf("duplicate variant should be removed: %v", out)
	}
	if _, ok := out["event_ticket_id"]; ok {
		t.Fatalf("duplicate variant should be removed: %v", out)
	}
	if out["quantity"] != 2 {
		t.Fatalf("expected quantity 2, got %v", out["quantity"])
	}
	if out["price"] != json.Number("115") {
		t.Fatalf("expected unwrapped price, got %#v", out["price"])
	}
	if out["status"] != "sold" {
		t.Fatalf("expected mapped status, got %v", out["status"])
	}
	if _, ok := out["pricePaid"]; ok {
		t.Fatalf("price variant should be removed: %v", out)
	}
	if _, ok := out["ticketStatus"]; ok {
		t.Fatalf("status variant should be removed: %v", out)
	}
	if out["attendeeId"] != "att-1" || out["seat"] != "A12" {
		t.Fatalf("owner and unknown keys must survive: %v", out)
	}
	if raw["eventTicketId"] != "banquet" {
		t.Fatalf("input must not be modified")
	}
	if len(changes) == 0 {
		t.Fatalf("expected changes to be reported")
	}
}

func TestCanonicalizeKeepsConflictingVariants(t *testing.T) {
	out, _ := Canonicalize(dbtypes.LineItem{
		"ticketTypeId":  "banquet",
		"eventTicketId": "drinks",
		"quantity":      1,
		"status":        "sold",
	})
	if out["ticketTypeId"] != "banquet" || out["eventTicketId"] != "drinks" {
		t.Fatalf("conflicting variant must stay: %v", out)
	}
}

func TestCanonicalizeFillsDefaultsAndLeavesGarbage(t *testing.T) {
	out, changes := Canonicalize(dbtypes.LineItem{"ticketTypeId": "banquet", "price": "abc", "status": "mystery"})
	if out["quantity"] != 1 {
		t.Fatalf("missing quantity should default to 1, got %v", out["quantity"])
	}
	if out["price"] != "abc" {
		t.Fatalf("unparseable price must stay untouched, got %v", out["price"])
	}
	if out["status"] != "mystery" {
		t.Fatalf("unrecognized status must stay untouched, got %v", out["status"])
	}
	if len(changes) != 1 {
		t.Fatalf("expected only the quantity fill, got %+v", changes)
	}

	out, _ = Canonicalize(dbtypes.LineItem{"ticketTypeId": "banquet", "quantity": "abc"})
	if out["quantity"] != "abc" {
		t.Fatalf("invalid quantity must stay untouched, got %v", out["quantity"])
	}
	if out["status"] != "sold" {
		t.Fatalf("missing status should be filled, got %v", out["status"])
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	first, _ := Canonicalize(dbtypes.LineItem{
		"is_package":     "true",
		"eventPackageId": "dinner-pack",
		"Quantity":       "3",
		"Status":         "refunded",
	})
	second, changes := Canonicalize(first)
	if len(changes) != 0 {
		t.Fatalf("second pass should be a no-op, got %+v", changes)
	}
	if second["isPackage"] != true || second["packageId"] != "dinner-pack" || second["quantity"] != 3 || second["status"] != "cancelled" {
		t.Fatalf("unexpected canonical item: %v", second)
	}
}

func TestCanonicalPriceComparesByValue(t *testing.T) {
	_, changes := Canonicalize(dbtypes.LineItem{
		"ticketTypeId": "banquet",
		"quantity":     json.Number("1"),
		"price":        json.Number("115.00"),
		"status":       "sold",
	})
	if len(changes) != 0 {
		t.Fatalf("equal numeric price should not be rewritten, got %+v", changes)
	}
}
