package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

func TestNormalizeResolvesKeyVariantsInPriorityOrder(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{"canonical", map[string]any{"ticketTypeId": "banquet"}, "banquet"},
		{"legacy camel", map[string]any{"eventTicketId": "banquet"}, "banquet"},
		{"legacy upper ID", map[string]any{"eventTicketID": "banquet"}, "banquet"},
		{"definition", map[string]any{"ticketDefinitionId": "banquet"}, "banquet"},
		{"snake", map[string]any{"event_ticket_id": "banquet"}, "banquet"},
		{"empty canonical skipped", map[string]any{"ticketTypeId": "  ", "eventTicketId": "drinks"}, "drinks"},
		{"priority wins", map[string]any{"eventTicketId": "drinks", "ticketTypeId": "banquet"}, "banquet"},
		{"extended id", map[string]any{"eventTicketId": map[string]any{"$oid": "64ab"}}, "64ab"},
	}
	for _, tc := range cases {
		got, ok, anomalies := Normalize(item(tc.raw), src(0))
		if !ok {
			t.Fatalf("%s: expected item, anomalies=%v", tc.name, kinds(anomalies))
		}
		if got.TicketTypeID != tc.want {
			t.Fatalf("%s: expected %q got %q", tc.name, tc.want, got.TicketTypeID)
		}
	}
}

func TestNormalizeWithoutTicketKeyYieldsAnomaly(t *testing.T) {
	_, ok, anomalies := Normalize(item(map[string]any{"quantity": 2, "attendeeId": "att-1"}), src(3))
	if ok {
		t.Fatal("expected item to be dropped")
	}
	if len(anomalies) != 1 || anomalies[0].Kind != enums.AnomalyUnresolvedTicketType {
		t.Fatalf("expected one unresolved_ticket_type anomaly, got %v", kinds(anomalies))
	}
	if anomalies[0].ItemIndex != 3 || anomalies[0].RegistrationID != "reg-1" {
		t.Fatalf("anomaly missing location: %+v", anomalies[0])
	}
}

func TestNormalizeQuantityDefaults(t *testing.T) {
	cases := []struct {
		name    string
		value   any
		present bool
		want    int
		anomaly bool
	}{
		{"absent", nil, false, 1, false},
		{"zero", 0, true, 1, true},
		{"negative", json.Number("-2"), true, 1, true},
		{"fraction", 1.5, true, 1, true},
		{"garbage", "lots", true, 1, true},
		{"string number", "4", true, 4, false},
		{"json number", json.Number("3"), true, 3, false},
		{"wrapped", map[string]any{"$numberInt": "7"}, true, 7, false},
		{"whole float", 2.0, true, 2, false},
	}
	for _, tc := range cases {
		raw := map[string]any{"ticketTypeId": "banquet"}
		if tc.present {
			raw["quantity"] = tc.value
		}
		got, ok, anomalies := Normalize(item(raw), src(0))
		if !ok {
			t.Fatalf("%s: expected item", tc.name)
		}
		if got.Quantity != tc.want {
			t.Fatalf("%s: expected quantity %d got %d", tc.name, tc.want, got.Quantity)
		}
		hasAnomaly := len(anomalies) == 1 && anomalies[0].Kind == enums.AnomalyInvalidQuantity
		if hasAnomaly != tc.anomaly {
			t.Fatalf("%s: expected anomaly=%v got %v", tc.name, tc.anomaly, kinds(anomalies))
		}
	}
}

func TestNormalizeQuantityAlternateKey(t *testing.T) {
	got, _, _ := Normalize(item(map[string]any{"ticketTypeId": "banquet", "qty": 5}), src(0))
	if got.Quantity != 5 {
		t.Fatalf("expected qty key to resolve, got %d", got.Quantity)
	}
}

func TestNormalizePrices(t *testing.T) {
	cases := []struct {
		name    string
		raw     map[string]any
		want    string
		anomaly bool
	}{
		{"number", map[string]any{"price": json.Number("115.00")}, "115", false},
		{"decimal wrapper", map[string]any{"price": map[string]any{"$numberDecimal": "115.50"}}, "115.5", false},
		{"alternate key", map[string]any{"pricePaid": "35"}, "35", false},
		{"unparseable", map[string]any{"price": "free"}, "0", true},
		{"negative", map[string]any{"price": -5.0}, "0", true},
		{"absent", map[string]any{}, "0", false},
	}
	for _, tc := range cases {
		tc.raw["ticketTypeId"] = "banquet"
		got, _, anomalies := Normalize(item(tc.raw), src(0))
		if !got.UnitPrice.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("%s: expected price %s got %s", tc.name, tc.want, got.UnitPrice)
		}
		hasAnomaly := len(anomalies) == 1 && anomalies[0].Kind == enums.AnomalyUnparseablePrice
		if hasAnomaly != tc.anomaly {
			t.Fatalf("%s: expected anomaly=%v got %v", tc.name, tc.anomaly, kinds(anomalies))
		}
	}
}

func TestNormalizeStatusBuckets(t *testing.T) {
	cases := map[string]enums.Bucket{
		"":            enums.BucketSold,
		"Sold":        enums.BucketSold,
		"paid":        enums.BucketSold,
		"pending":     enums.BucketReserved,
		" RESERVED ":  enums.BucketReserved,
		"transferred": enums.BucketTransferred,
		"canceled":    enums.BucketCancelled,
		"refunded":    enums.BucketCancelled,
		"mystery":     enums.BucketSold,
	}
	for status, want := range cases {
		raw := map[string]any{"ticketTypeId": "banquet"}
		if status != "" {
			raw["ticketStatus"] = status
		}
		got, _, _ := Normalize(item(raw), src(0))
		if got.Bucket != want {
			t.Fatalf("status %q: expected %s got %s", status, want, got.Bucket)
		}
	}
}

func TestNormalizeCopiesOwnerLinkage(t *testing.T) {
	raw := item(map[string]any{"ticketTypeId": "banquet", "attendeeId": "att-7", "ownerType": "attendee", "note": "vip"})
	got, _, _ := Normalize(raw, src(0))
	if got.Owner["attendeeId"] != "att-7" || got.Owner["ownerType"] != "attendee" {
		t.Fatalf("owner linkage lost: %#v", got.Owner)
	}
	if _, ok := got.Owner["note"]; ok {
		t.Fatal("non-owner keys should not be copied into owner")
	}
	if raw["note"] != "vip" {
		t.Fatal("normalize must not mutate the raw item")
	}
}

func TestNormalizeInfersOwnerTypeFromRegistration(t *testing.T) {
	lodge := Source{RegistrationID: "reg-2", RegistrationType: enums.RegistrationTypeLodge}
	got, _, _ := Normalize(item(map[string]any{"ticketTypeId": "banquet", "lodgeId": "lodge-1"}), lodge)
	if got.Owner["ownerType"] != "lodge" {
		t.Fatalf("expected lodge owner type, got %#v", got.Owner)
	}
}

func TestNormalizeDefersPackages(t *testing.T) {
	for _, raw := range []map[string]any{
		{"isPackage": true, "packageId": "dinner-pack"},
		{"is_package": "true", "eventPackageId": "dinner-pack", "ticketTypeId": "banquet"},
		{"packageId": "dinner-pack"},
	} {
		if !IsPackageItem(item(raw)) {
			t.Fatalf("expected package item for %#v", raw)
		}
		if _, ok, anomalies := Normalize(item(raw), src(0)); ok || len(anomalies) != 0 {
			t.Fatalf("expected package item to be deferred silently: %#v", raw)
		}
	}
	if IsPackageItem(item(map[string]any{"isPackage": false, "ticketTypeId": "banquet", "packageId": "dinner-pack"})) {
		t.Fatal("ticket item with stray package id should stay a ticket item")
	}
}
