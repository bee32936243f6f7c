package recompute

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lodgetix/ticket-inventory/internal/pipeline"
	dbtypes "github.com/lodgetix/ticket-inventory/pkg/db/types"
	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ChangeImage is one side of a registration mutation. LineItems, when
// present, take precedence over TicketTypeIDs.
type ChangeImage struct {
	RegistrationType enums.RegistrationType `json:"registrationType,omitempty"`
	TicketTypeIDs    []string               `json:"ticketTypeIds"`
	LineItems        dbtypes.LineItems      `json:"lineItems"`
}

func (c *ChangeImage) known() bool {
	return c != nil && (c.LineItems != nil || c.TicketTypeIDs != nil)
}

// ChangeEvent describes one registration mutation delivered by the change feed.
type ChangeEvent struct {
	EventID        string                `json:"eventId,omitempty"`
	RegistrationID string                `json:"registrationId" validate:"required"`
	Operation      enums.ChangeOperation `json:"operation" validate:"required,oneof=insert update delete"`
	Before         *ChangeImage          `json:"before,omitempty"`
	After          *ChangeImage          `json:"after,omitempty"`
	OccurredAt     *time.Time            `json:"occurredAt,omitempty"`
}

// Validate checks the required envelope fields.
func (e ChangeEvent) Validate() error {
	return validate.Struct(e)
}

// DecodeChangeEvent parses and validates a change event, keeping line item
// numbers as json.Number.
func DecodeChangeEvent(data []byte) (ChangeEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var event ChangeEvent
	if err := dec.Decode(&event); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	if event.Operation != "" {
		op, err := enums.ParseChangeOperation(string(event.Operation))
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("invalid change event: %w", err)
		}
		event.Operation = op
	}
	if err := event.Validate(); err != nil {
		return ChangeEvent{}, fmt.Errorf("invalid change event: %w", err)
	}
	return event, nil
}

// AffectedTicketTypes extracts the known ticket types touched by the event.
// It reports false when the images needed for the operation are missing, in
// which case every ticket type must be recomputed.
func AffectedTicketTypes(event ChangeEvent, catalog *pipeline.Catalog) ([]string, bool) {
	var images []*ChangeImage
	switch event.Operation {
	case enums.ChangeOperationInsert:
		images = []*ChangeImage{event.After}
	case enums.ChangeOperationDelete:
		images = []*ChangeImage{event.Before}
	case enums.ChangeOperationUpdate:
		images = []*ChangeImage{event.Before, event.After}
	default:
		return nil, false
	}

	seen := map[string]struct{}{}
	var out []string
	add := func(id string) {
		if _, known := catalog.TicketType(id); !known {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, image := range images {
		if !image.known() {
			return nil, false
		}
		if image.LineItems != nil {
			res := pipeline.RunItems(event.RegistrationID, image.RegistrationType, image.LineItems, catalog)
			for _, id := range res.TicketTypeIDs() {
				add(id)
			}
			continue
		}
		for _, id := range image.TicketTypeIDs {
			if pkg, ok := catalog.Package(id); ok {
				for _, item := range pkg.Items {
					add(item.TicketTypeID)
				}
				continue
			}
			add(id)
		}
	}
	return out, true
}
