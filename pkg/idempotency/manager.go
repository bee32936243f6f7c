package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lodgetix/ticket-inventory/pkg/instance"
	"github.com/lodgetix/ticket-inventory/pkg/redis"
)

const processedScope = "evt:processed"

// Manager marks change events as processed per consumer so redeliveries are
// acked without recomputing twice. Keys look like
// tix:idempotency:evt:processed:<consumer>:<event_id> and hold the id of the
// instance that claimed the event.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	owner string
}

// NewManager builds a guard whose marks expire after ttl. Zero keeps marks
// until they are released.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl, owner: instance.GetID()}, nil
}

// CheckAndMarkProcessed claims eventID for consumer. It reports true when the
// event was already claimed, by this or any other instance.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID string) (bool, error) {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, m.owner, m.ttl)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Release drops this instance's claim so a redelivery is processed again. A
// claim held by another instance is left in place.
func (m *Manager) Release(ctx context.Context, consumer string, eventID string) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	_, err = m.store.CompareAndDelete(ctx, key, m.owner)
	return err
}

func (m *Manager) processedKey(consumer string, eventID string) (string, error) {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey(processedScope+":"+consumer, eventID), nil
}
