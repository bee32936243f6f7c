package pipeline

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/lodgetix/ticket-inventory/pkg/db/models"
)

// TicketTypeDef is the catalog view of a ticket type.
type TicketTypeDef struct {
	ID            string
	Name          string
	UnitPrice     decimal.Decimal
	TotalCapacity int
}

// PackageItem is one (ticket type, included quantity) pair of a package.
type PackageItem struct {
	TicketTypeID string
	Quantity     int
}

// PackageDef is the catalog view of a package.
type PackageDef struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Items []PackageItem
}

// Catalog is an immutable lookup over ticket types and packages built once per run.
type Catalog struct {
	ticketTypes map[string]TicketTypeDef
	packages    map[string]PackageDef
	containing  map[string][]string
	ids         []string
}

func NewCatalog(ticketTypes []TicketTypeDef, packages []PackageDef) *Catalog {
	c := &Catalog{
		ticketTypes: make(map[string]TicketTypeDef, len(ticketTypes)),
		packages:    make(map[string]PackageDef, len(packages)),
		containing:  make(map[string][]string),
	}
	for _, tt := range ticketTypes {
		c.ticketTypes[tt.ID] = tt
	}
	for id := range c.ticketTypes {
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)

	for _, pkg := range packages {
		items := make([]PackageItem, len(pkg.Items))
		copy(items, pkg.Items)
		pkg.Items = items
		c.packages[pkg.ID] = pkg

		seen := map[string]struct{}{}
		for _, item := range items {
			if _, dup := seen[item.TicketTypeID]; dup {
				continue
			}
			seen[item.TicketTypeID] = struct{}{}
			c.containing[item.TicketTypeID] = append(c.containing[item.TicketTypeID], pkg.ID)
		}
	}
	for id := range c.containing {
		sort.Strings(c.containing[id])
	}
	return c
}

// CatalogFromModels builds a catalog from stored rows.
func CatalogFromModels(ticketTypes []models.TicketType, packages []models.Package) *Catalog {
	tts := make([]TicketTypeDef, 0, len(ticketTypes))
	for _, tt := range ticketTypes {
		tts = append(tts, TicketTypeDef{
			ID:            tt.ID,
			Name:          tt.Name,
			UnitPrice:     tt.UnitPrice,
			TotalCapacity: tt.TotalCapacity,
		})
	}
	pkgs := make([]PackageDef, 0, len(packages))
	for _, p := range packages {
		def := PackageDef{ID: p.ID, Name: p.Name, Price: p.Price}
		for _, item := range p.IncludedItems {
			def.Items = append(def.Items, PackageItem{TicketTypeID: item.TicketTypeID, Quantity: item.Quantity})
		}
		pkgs = append(pkgs, def)
	}
	return NewCatalog(tts, pkgs)
}

// TicketType returns the ticket type definition, or false when unknown.
func (c *Catalog) TicketType(id string) (TicketTypeDef, bool) {
	tt, ok := c.ticketTypes[id]
	return tt, ok
}

// Package returns the package definition, or false when unknown.
func (c *Catalog) Package(id string) (PackageDef, bool) {
	pkg, ok := c.packages[id]
	return pkg, ok
}

// PackagesContaining lists the packages that include the ticket type, sorted.
func (c *Catalog) PackagesContaining(ticketTypeID string) []string {
	return append([]string(nil), c.containing[ticketTypeID]...)
}

// TicketTypeIDs returns every known ticket type id, sorted.
func (c *Catalog) TicketTypeIDs() []string {
	return append([]string(nil), c.ids...)
}

// Len returns the number of ticket types.
func (c *Catalog) Len() int {
	return len(c.ids)
}
