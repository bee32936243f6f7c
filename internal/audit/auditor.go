package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgetix/ticket-inventory/internal/pipeline"
	"github.com/lodgetix/ticket-inventory/internal/tickettypes"
	"github.com/lodgetix/ticket-inventory/pkg/db/models"
	"github.com/lodgetix/ticket-inventory/pkg/enums"
	pkgerrors "github.com/lodgetix/ticket-inventory/pkg/errors"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

const defaultSampleLimit = 10

// RegistrationScanner streams the registration corpus.
type RegistrationScanner interface {
	ScanAll(ctx context.Context, batchSize int, fn func([]models.Registration) error) error
}

// InventoryReader exposes the catalog and the stored inventory rows.
type InventoryReader interface {
	LoadCatalog(ctx context.Context) (*pipeline.Catalog, error)
	List(ctx context.Context) ([]models.TicketType, error)
}

// Params configure an Auditor.
type Params struct {
	Registrations RegistrationScanner
	Inventory     InventoryReader
	Logger        *logger.Logger
	Tolerance     decimal.Decimal
	SampleLimit   int
	BatchSize     int
	Clock         func() time.Time
}

// Auditor produces consistency reports without mutating anything.
type Auditor struct {
	registrations RegistrationScanner
	inventory     InventoryReader
	logg          *logger.Logger
	tolerance     decimal.Decimal
	sampleLimit   int
	batchSize     int
	now           func() time.Time
}

func NewAuditor(params Params) (*Auditor, error) {
	if params.Registrations == nil {
		return nil, fmt.Errorf("registration scanner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory reader required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	limit := params.SampleLimit
	if limit <= 0 {
		limit = defaultSampleLimit
	}
	tolerance := params.Tolerance
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Auditor{
		registrations: params.Registrations,
		inventory:     params.Inventory,
		logg:          params.Logger,
		tolerance:     tolerance,
		sampleLimit:   limit,
		batchSize:     params.BatchSize,
		now:           clock,
	}, nil
}

// revenueAcc accumulates implied and paid revenue for one ticket type.
type revenueAcc struct {
	registrations int
	soldUnits     int
	implied       decimal.Decimal
	paid          decimal.Decimal
}

// Run scans every registration and assembles the report.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	started := a.now()
	ctx = a.logg.WithField(ctx, "job", "consistency-audit")

	catalog, err := a.inventory.LoadCatalog(ctx)
	if err != nil {
		return Report{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog")
	}
	stored, err := a.inventory.List(ctx)
	if err != nil {
		return Report{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ticket types")
	}

	report := Report{
		GeneratedAt:      started,
		Tolerance:        a.tolerance,
		SampleLimit:      a.sampleLimit,
		ticketTypeCounts: map[string]typeCount{},
	}
	tally := pipeline.Tally{}
	revenue := map[string]*revenueAcc{}
	var anomalies []pipeline.Anomaly

	err = a.registrations.ScanAll(ctx, a.batchSize, func(batch []models.Registration) error {
		for _, reg := range batch {
			res := pipeline.Run(reg, catalog)
			tally.AddAll(res.Items)
			anomalies = append(anomalies, res.Anomalies...)
			report.RegistrationsScanned++

			for _, item := range res.Items {
				if _, known := catalog.TicketType(item.TicketTypeID); known {
					continue
				}
				tc := report.ticketTypeCounts[item.TicketTypeID]
				tc.occurrences++
				tc.quantity += item.Quantity
				report.ticketTypeCounts[item.TicketTypeID] = tc
			}
			accumulateRevenue(revenue, reg, res, catalog)
		}
		return nil
	})
	if err != nil {
		return Report{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan registrations")
	}

	report.Anomalies = pipeline.DedupeAnomalies(anomalies)
	report.AnomaliesFound = len(report.Anomalies)
	report.ResolutionFailures = a.kindSummaries(report.Anomalies, enums.AnomalyKind.IsResolutionFailure)
	report.DataQuality = a.kindSummaries(report.Anomalies, func(k enums.AnomalyKind) bool {
		return !k.IsResolutionFailure() && !k.IsPackageProblem() && k != enums.AnomalyUnknownTicketType
	})
	report.UnknownTicketTypes = a.unknownTicketTypes(report.Anomalies, report.ticketTypeCounts)
	report.PackageProblems = a.packageProblems(report.Anomalies)
	report.RevenueWarnings = a.revenueWarnings(revenue)
	report.StaleSnapshots = staleSnapshots(stored, tally)
	report.DurationMs = a.now().Sub(started).Milliseconds()

	ctx = a.logg.WithFields(ctx, map[string]any{
		"registrations_scanned": report.RegistrationsScanned,
		"anomalies_found":       report.AnomaliesFound,
		"unknown_ticket_types":  len(report.UnknownTicketTypes),
		"revenue_warnings":      len(report.RevenueWarnings),
		"stale_snapshots":       len(report.StaleSnapshots),
		"duration_ms":           report.DurationMs,
	})
	if report.HasFindings() {
		a.logg.Warn(ctx, "consistency audit found issues")
	} else {
		a.logg.Info(ctx, "consistency audit clean")
	}
	return report, nil
}

// accumulateRevenue attributes a paid registration's expected total to every
// ticket type it sold. Direct items are priced at the canonical unit price;
// package purchases at the package price.
func accumulateRevenue(acc map[string]*revenueAcc, reg models.Registration, res pipeline.Result, catalog *pipeline.Catalog) {
	if !reg.PaymentTotal.Valid {
		return
	}

	expected := decimal.Zero
	soldUnits := map[string]int{}
	for _, item := range res.Items {
		if !item.Bucket.CountsAsSold() {
			continue
		}
		def, known := catalog.TicketType(item.TicketTypeID)
		if !known {
			continue
		}
		soldUnits[item.TicketTypeID] += item.Quantity
		if !item.FromPackage() {
			expected = expected.Add(def.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	for _, raw := range reg.LineItems {
		if raw == nil || !pipeline.IsPackageItem(raw) || !pipeline.ResolveBucket(raw).CountsAsSold() {
			continue
		}
		id, qty, ok := pipeline.PurchasedPackage(raw)
		if !ok {
			continue
		}
		if def, known := catalog.Package(id); known {
			expected = expected.Add(def.Price.Mul(decimal.NewFromInt(int64(qty))))
		}
	}

	for id, units := range soldUnits {
		entry, ok := acc[id]
		if !ok {
			entry = &revenueAcc{implied: decimal.Zero, paid: decimal.Zero}
			acc[id] = entry
		}
		entry.registrations++
		entry.soldUnits += units
		entry.implied = entry.implied.Add(expected)
		entry.paid = entry.paid.Add(reg.PaymentTotal.Decimal)
	}
}

func (a *Auditor) revenueWarnings(acc map[string]*revenueAcc) []RevenueWarning {
	out := []RevenueWarning{}
	for id, entry := range acc {
		allowed := a.tolerance.Mul(decimal.NewFromInt(int64(entry.registrations)))
		diff := entry.implied.Sub(entry.paid)
		if diff.Abs().LessThanOrEqual(allowed) {
			continue
		}
		out = append(out, RevenueWarning{
			TicketTypeID:   id,
			Registrations:  entry.registrations,
			SoldUnits:      entry.soldUnits,
			ImpliedRevenue: entry.implied,
			PaidRevenue:    entry.paid,
			Difference:     diff,
			Allowed:        allowed,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketTypeID < out[j].TicketTypeID })
	return out
}

func staleSnapshots(stored []models.TicketType, tally pipeline.Tally) []StaleSnapshot {
	out := []StaleSnapshot{}
	for _, row := range stored {
		expected := pipeline.Reconcile(row.ID, row.TotalCapacity, tally[row.ID])
		current := tickettypes.StoredSnapshot(row)
		if current.Equal(expected) {
			continue
		}
		out = append(out, StaleSnapshot{
			TicketTypeID:   row.ID,
			Stored:         current,
			Expected:       expected,
			LastComputedAt: row.LastComputedAt,
		})
	}
	return out
}

func (a *Auditor) kindSummaries(anomalies []pipeline.Anomaly, include func(enums.AnomalyKind) bool) []KindSummary {
	byKind := map[enums.AnomalyKind]*KindSummary{}
	samples := map[enums.AnomalyKind]*sampler{}
	for _, an := range anomalies {
		if !include(an.Kind) {
			continue
		}
		entry, ok := byKind[an.Kind]
		if !ok {
			entry = &KindSummary{Kind: an.Kind}
			byKind[an.Kind] = entry
			samples[an.Kind] = newSampler(a.sampleLimit)
		}
		entry.Count++
		samples[an.Kind].add(an.RegistrationID)
	}

	out := make([]KindSummary, 0, len(byKind))
	for kind, entry := range byKind {
		entry.Samples = samples[kind].ids
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func (a *Auditor) unknownTicketTypes(anomalies []pipeline.Anomaly, counts map[string]typeCount) []UnknownTicketType {
	samples := map[string]*sampler{}
	for _, an := range anomalies {
		if an.Kind != enums.AnomalyUnknownTicketType {
			continue
		}
		s, ok := samples[an.TicketTypeID]
		if !ok {
			s = newSampler(a.sampleLimit)
			samples[an.TicketTypeID] = s
		}
		s.add(an.RegistrationID)
	}

	out := make([]UnknownTicketType, 0, len(counts))
	for id, tc := range counts {
		entry := UnknownTicketType{TicketTypeID: id, Occurrences: tc.occurrences, Quantity: tc.quantity}
		if s, ok := samples[id]; ok {
			entry.Samples = s.ids
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketTypeID < out[j].TicketTypeID })
	return out
}

func (a *Auditor) packageProblems(anomalies []pipeline.Anomaly) []PackageProblem {
	byPackage := map[string]*PackageProblem{}
	samples := map[string]*sampler{}
	for _, an := range anomalies {
		if !an.Kind.IsPackageProblem() {
			continue
		}
		entry, ok := byPackage[an.PackageID]
		if !ok {
			entry = &PackageProblem{PackageID: an.PackageID, Kinds: map[enums.AnomalyKind]int{}}
			byPackage[an.PackageID] = entry
			samples[an.PackageID] = newSampler(a.sampleLimit)
		}
		entry.Count++
		entry.Kinds[an.Kind]++
		samples[an.PackageID].add(an.RegistrationID)
	}

	out := make([]PackageProblem, 0, len(byPackage))
	for id, entry := range byPackage {
		entry.Samples = samples[id].ids
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PackageID < out[j].PackageID })
	return out
}

// sampler keeps the first n distinct registration ids.
type sampler struct {
	limit int
	seen  map[string]struct{}
	ids   []string
}

func newSampler(limit int) *sampler {
	return &sampler{limit: limit, seen: map[string]struct{}{}, ids: []string{}}
}

func (s *sampler) add(id string) {
	if len(s.ids) >= s.limit {
		return
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.ids = append(s.ids, id)
}
