package audit

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgetix/ticket-inventory/internal/pipeline"
	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

// Report is the read-only consistency diagnosis of the registration corpus
// against the catalog and the stored inventory.
type Report struct {
	GeneratedAt          time.Time            `json:"generatedAt"`
	DurationMs           int64                `json:"durationMs"`
	RegistrationsScanned int                  `json:"registrationsScanned"`
	AnomaliesFound       int                  `json:"anomaliesFound"`
	ResolutionFailures   []KindSummary        `json:"resolutionFailures"`
	DataQuality          []KindSummary        `json:"dataQuality"`
	UnknownTicketTypes   []UnknownTicketType  `json:"unknownTicketTypes"`
	PackageProblems      []PackageProblem     `json:"packageProblems"`
	RevenueWarnings      []RevenueWarning     `json:"revenueWarnings"`
	StaleSnapshots       []StaleSnapshot      `json:"staleSnapshots"`
	Tolerance            decimal.Decimal      `json:"tolerancePerRegistration"`
	SampleLimit          int                  `json:"sampleLimit"`
	Anomalies            []pipeline.Anomaly   `json:"-"`
	ticketTypeCounts     map[string]typeCount
}

// KindSummary counts one anomaly kind with sample registration ids.
type KindSummary struct {
	Kind    enums.AnomalyKind `json:"kind"`
	Count   int               `json:"count"`
	Samples []string          `json:"sampleRegistrationIds"`
}

// UnknownTicketType is a ticket type referenced by line items but missing from the catalog.
type UnknownTicketType struct {
	TicketTypeID string   `json:"ticketTypeId"`
	Occurrences  int      `json:"occurrences"`
	Quantity     int      `json:"quantity"`
	Samples      []string `json:"sampleRegistrationIds"`
}

// PackageProblem groups expansion issues by package.
type PackageProblem struct {
	PackageID string                    `json:"packageId"`
	Count     int                       `json:"count"`
	Kinds     map[enums.AnomalyKind]int `json:"kinds"`
	Samples   []string                  `json:"sampleRegistrationIds"`
}

// RevenueWarning flags a ticket type whose implied revenue disagrees with
// recorded payments beyond tolerance.
type RevenueWarning struct {
	TicketTypeID   string          `json:"ticketTypeId"`
	Registrations  int             `json:"registrations"`
	SoldUnits      int             `json:"soldUnits"`
	ImpliedRevenue decimal.Decimal `json:"impliedRevenue"`
	PaidRevenue    decimal.Decimal `json:"paidRevenue"`
	Difference     decimal.Decimal `json:"difference"`
	Allowed        decimal.Decimal `json:"allowed"`
}

// StaleSnapshot is a ticket type whose stored derived fields differ from a
// fresh computation.
type StaleSnapshot struct {
	TicketTypeID   string            `json:"ticketTypeId"`
	Stored         pipeline.Snapshot `json:"stored"`
	Expected       pipeline.Snapshot `json:"expected"`
	LastComputedAt *time.Time        `json:"lastComputedAt"`
}

type typeCount struct {
	occurrences int
	quantity    int
}

// HasFindings reports whether anything beyond clean data was found.
func (r Report) HasFindings() bool {
	return r.AnomaliesFound > 0 || len(r.RevenueWarnings) > 0 || len(r.StaleSnapshots) > 0
}
