package pipeline

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/lodgetix/ticket-inventory/pkg/db/models"
	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

func TestRunBanquetScenario(t *testing.T) {
	catalog := testCatalog()
	tally := Tally{}
	for i := 0; i < 10; i++ {
		reg := models.Registration{
			ID:        fmt.Sprintf("reg-%02d", i),
			LineItems: dbtypes.LineItems{{"ticketTypeId": "banquet", "quantity": 1, "status": "sold", "price": "115.00"}},
		}
		tally.AddAll(Run(reg, catalog).Items)
	}
	reserved := models.Registration{
		ID:        "reg-held",
		LineItems: dbtypes.LineItems{{"eventTicketId": "banquet", "quantity": 5, "status": "reserved", "price": "115"}},
	}
	tally.AddAll(Run(reserved, catalog).Items)

	def, _ := catalog.TicketType("banquet")
	snap := Reconcile("banquet", def.TotalCapacity, tally["banquet"])
	if snap.SoldCount != 10 || snap.ReservedCount != 5 || snap.AvailableCount != 435 || snap.UtilizationRate.String() != "2.2" {
		t.Fatalf("unexpected banquet snapshot %+v", snap)
	}
}

func TestRunMixesTicketsAndPackages(t *testing.T) {
	reg := models.Registration{
		ID:               "reg-mix",
		RegistrationType: enums.RegistrationTypeLodge,
		LineItems: dbtypes.LineItems{
			{"ticketTypeId": "banquet", "quantity": 1, "price": "115.00", "lodgeId": "lodge-3"},
			{"isPackage": true, "packageId": "dinner-pack", "quantity": 2, "lodgeId": "lodge-3"},
			{"quantity": 1},
		},
	}
	res := Run(reg, testCatalog())
	if len(res.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(res.Items))
	}
	if got := res.TicketTypeIDs(); !reflect.DeepEqual(got, []string{"banquet", "drinks"}) {
		t.Fatalf("unexpected ticket type ids %v", got)
	}
	if len(res.ItemsFor("banquet")) != 2 {
		t.Fatalf("expected banquet from direct item and package")
	}
	if len(res.Anomalies) != 1 || res.Anomalies[0].Kind != enums.AnomalyUnresolvedTicketType || res.Anomalies[0].ItemIndex != 2 {
		t.Fatalf("unexpected anomalies %+v", res.Anomalies)
	}
	for _, it := range res.Items {
		if it.Owner["lodgeId"] != "lodge-3" || it.Owner["ownerType"] != "lodge" {
			t.Fatalf("owner linkage lost on %+v", it)
		}
	}
}

func TestRunCatalogAnomalies(t *testing.T) {
	reg := models.Registration{
		ID: "reg-bad",
		LineItems: dbtypes.LineItems{
			{"ticketTypeId": "ghost"},
			{"ticketTypeId": "banquet"},
			{"ticketTypeId": "banquet", "price": "99"},
			{"ticketTypeId": "B"},
			{"packageId": "ab-pack"},
		},
	}
	res := Run(reg, testCatalog())
	want := []enums.AnomalyKind{enums.AnomalyUnknownTicketType, enums.AnomalyZeroPrice, enums.AnomalyPriceMismatch}
	if !reflect.DeepEqual(kinds(res.Anomalies), want) {
		t.Fatalf("expected %v got %v", want, kinds(res.Anomalies))
	}
	if len(res.ItemsFor("ghost")) != 1 {
		t.Fatal("unknown ticket types are still routed so the auditor can count them")
	}
}

func TestRunConservesQuantitiesWithoutAnomalies(t *testing.T) {
	reg := models.Registration{
		ID: "reg-cons",
		LineItems: dbtypes.LineItems{
			{"ticketTypeId": "A", "quantity": 2, "status": "sold", "price": 10},
			{"ticketTypeId": "A", "quantity": 3, "status": "transferred", "price": 10},
			{"ticketTypeId": "A", "quantity": 4, "status": "pending", "price": 10},
			{"ticketTypeId": "A", "quantity": 1, "status": "refunded", "price": 10},
		},
	}
	res := Run(reg, testCatalog())
	if len(res.Anomalies) != 0 {
		t.Fatalf("unexpected anomalies %v", kinds(res.Anomalies))
	}
	sum := 0
	for _, it := range res.ItemsFor("A") {
		sum += it.Quantity
	}
	counts := Aggregate(res.Items)["A"]
	if counts.Total() != sum || counts.Sold != 5 || counts.Reserved != 4 || counts.Cancelled != 1 {
		t.Fatalf("conservation violated: sum=%d counts=%+v", sum, counts)
	}
}

func TestRunSkipsNilItemsAndDefaultsRegistrationType(t *testing.T) {
	res := RunItems("reg-nil", enums.RegistrationType("corporate"), dbtypes.LineItems{nil, {"ticketTypeId": "A", "price": 10, "attendeeId": "a"}}, testCatalog())
	if len(res.Items) != 1 || res.Items[0].Index != 1 {
		t.Fatalf("expected the second item only, got %+v", res.Items)
	}
	if res.Items[0].Owner["ownerType"] != "attendee" {
		t.Fatalf("unknown registration types behave as individual, got %#v", res.Items[0].Owner)
	}
}

func TestDedupeAnomalies(t *testing.T) {
	a := Anomaly{Kind: enums.AnomalyZeroPrice, RegistrationID: "r2", ItemIndex: 0, TicketTypeID: "A"}
	b := Anomaly{Kind: enums.AnomalyUnknownPackage, RegistrationID: "r1", ItemIndex: 4, PackageID: "p"}
	out := DedupeAnomalies([]Anomaly{a, b, a, b})
	if len(out) != 2 || out[0].RegistrationID != "r1" {
		t.Fatalf("unexpected dedupe result %+v", out)
	}
	if counts := CountByKind(out); counts[enums.AnomalyZeroPrice] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestCatalogLookups(t *testing.T) {
	c := testCatalog()
	if _, ok := c.TicketType("ghost"); ok {
		t.Fatal("expected unknown ticket type lookup to miss")
	}
	if _, ok := c.Package("ghost"); ok {
		t.Fatal("expected unknown package lookup to miss")
	}
	if got := c.PackagesContaining("A"); !reflect.DeepEqual(got, []string{"ab-pack", "broken-pack"}) {
		t.Fatalf("unexpected packages containing A: %v", got)
	}
	if got := c.TicketTypeIDs(); !reflect.DeepEqual(got, []string{"A", "B", "banquet", "drinks"}) {
		t.Fatalf("expected sorted ids, got %v", got)
	}
	if c.Len() != 4 {
		t.Fatalf("expected 4 ticket types, got %d", c.Len())
	}
}
