package changefeed

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/lodgetix/ticket-inventory/internal/recompute"
	pkgerrors "github.com/lodgetix/ticket-inventory/pkg/errors"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

type fakeRecomputer struct {
	events  []recompute.ChangeEvent
	summary recompute.Summary
	err     error
	// cancel, when set, stops the receive context mid-recompute.
	cancel context.CancelFunc
}

func (f *fakeRecomputer) TriggerIncrementalRecompute(ctx context.Context, event recompute.ChangeEvent) (recompute.Summary, error) {
	f.events = append(f.events, event)
	if f.cancel != nil {
		f.cancel()
		return recompute.Summary{}, ctx.Err()
	}
	return f.summary, f.err
}

type fakeGuard struct {
	seen     map[string]bool
	checkErr error
	released []string
}

func newFakeGuard() *fakeGuard { return &fakeGuard{seen: map[string]bool{}} }

func (g *fakeGuard) CheckAndMarkProcessed(_ context.Context, _ string, eventID string) (bool, error) {
	if g.checkErr != nil {
		return false, g.checkErr
	}
	if g.seen[eventID] {
		return true, nil
	}
	g.seen[eventID] = true
	return false, nil
}

func (g *fakeGuard) Release(ctx context.Context, _ string, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(g.seen, eventID)
	g.released = append(g.released, eventID)
	return nil
}

func mustConsumer(t *testing.T, rec *fakeRecomputer, guard *fakeGuard) *Consumer {
	t.Helper()
	return &Consumer{
		recompute:   rec,
		idempotency: guard,
		logg:        logger.New(logger.Options{ServiceName: "changefeed-test", Output: io.Discard}),
	}
}

const insertEvent = `{"eventId":"evt-1","registrationId":"r1","operation":"insert","after":{"ticketTypeIds":["banquet"]}}`

func TestProcessRunsIncrementalRecomputeOnce(t *testing.T) {
	rec := &fakeRecomputer{}
	guard := newFakeGuard()
	c := mustConsumer(t, rec, guard)

	if c.process(context.Background(), delivery{id: "m1", data: []byte(insertEvent)}) {
		t.Fatalf("expected ack")
	}
	if c.process(context.Background(), delivery{id: "m2", data: []byte(insertEvent)}) {
		t.Fatalf("expected duplicate to be acked")
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected one recompute, got %d", len(rec.events))
	}
	if rec.events[0].RegistrationID != "r1" {
		t.Fatalf("unexpected event %+v", rec.events[0])
	}
}

func TestProcessAcksUndecodableMessages(t *testing.T) {
	rec := &fakeRecomputer{}
	c := mustConsumer(t, rec, newFakeGuard())

	for _, body := range []string{`not-json`, `{"registrationId":"r1","operation":"upsert"}`} {
		if c.process(context.Background(), delivery{id: "m1", data: []byte(body)}) {
			t.Fatalf("expected ack for %q", body)
		}
	}
	if len(rec.events) != 0 {
		t.Fatalf("undecodable messages must not trigger recompute")
	}
}

func TestProcessReleasesAndNacksOnRecomputeError(t *testing.T) {
	rec := &fakeRecomputer{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "load catalog")}
	guard := newFakeGuard()
	c := mustConsumer(t, rec, guard)

	if !c.process(context.Background(), delivery{id: "m1", data: []byte(insertEvent)}) {
		t.Fatalf("expected nack")
	}
	if len(guard.released) != 1 || guard.released[0] != "evt-1" {
		t.Fatalf("expected idempotency mark released, got %v", guard.released)
	}

	rec.err = nil
	if c.process(context.Background(), delivery{id: "m1", data: []byte(insertEvent)}) || len(rec.events) != 2 {
		t.Fatalf("redelivery should be processed again, events=%d", len(rec.events))
	}
}

func TestProcessReleasesMarkWhenReceiveContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &fakeRecomputer{cancel: cancel}
	guard := newFakeGuard()
	c := mustConsumer(t, rec, guard)

	if !c.process(ctx, delivery{id: "m1", data: []byte(insertEvent)}) {
		t.Fatalf("expected nack on shutdown")
	}
	if guard.seen["evt-1"] || len(guard.released) != 1 {
		t.Fatalf("expected mark released despite cancelled context, released=%v", guard.released)
	}

	rec.cancel = nil
	if c.process(context.Background(), delivery{id: "m1", data: []byte(insertEvent)}) {
		t.Fatalf("expected redelivery to be acked after recompute")
	}
	if len(rec.events) != 2 {
		t.Fatalf("redelivery must recompute again, got %d recomputes", len(rec.events))
	}
}

func TestProcessNacksWhenIdempotencyStoreFails(t *testing.T) {
	rec := &fakeRecomputer{}
	guard := newFakeGuard()
	guard.checkErr = errors.New("redis down")
	c := mustConsumer(t, rec, guard)

	if !c.process(context.Background(), delivery{id: "m1", data: []byte(insertEvent)}) {
		t.Fatalf("expected nack")
	}
	if len(rec.events) != 0 {
		t.Fatalf("recompute must not run without an idempotency mark")
	}
}

func TestProcessAcksPartialFailures(t *testing.T) {
	rec := &fakeRecomputer{summary: recompute.Summary{TicketTypesFailed: 1}}
	c := mustConsumer(t, rec, newFakeGuard())
	if c.process(context.Background(), delivery{id: "m1", data: []byte(insertEvent)}) {
		t.Fatalf("expected ack for partial failure")
	}
}

func TestEventIDFallsBackToAttributesThenMessageID(t *testing.T) {
	event := recompute.ChangeEvent{RegistrationID: "r1"}
	if got := eventIDFor(event, delivery{id: "m1", attributes: map[string]string{"event_id": "attr-1"}}); got != "attr-1" {
		t.Fatalf("expected attribute id, got %s", got)
	}
	if got := eventIDFor(event, delivery{id: "m1"}); got != "m1" {
		t.Fatalf("expected message id, got %s", got)
	}
	event.EventID = " evt-9 "
	if got := eventIDFor(event, delivery{id: "m1"}); got != "evt-9" {
		t.Fatalf("expected producer id, got %s", got)
	}
}

func TestNewConsumerValidates(t *testing.T) {
	if _, err := NewConsumer(nil, &fakeRecomputer{}, newFakeGuard(), logger.New(logger.Options{Output: io.Discard})); err == nil {
		t.Fatalf("expected missing subscription to fail")
	}
}
