package pipeline

import "github.com/lodgetix/ticket-inventory/pkg/enums"

// Counts are the bucket sums for one ticket type. Sold includes transferred
// units; Transferred is also tracked on its own.
type Counts struct {
	Sold        int
	Reserved    int
	Transferred int
	Cancelled   int
}

// Add folds one normalized item into the counts.
func (c *Counts) Add(item Item) {
	if item.Bucket.CountsAsSold() {
		c.Sold += item.Quantity
		if item.Bucket == enums.BucketTransferred {
			c.Transferred += item.Quantity
		}
		return
	}
	if item.Bucket.ConsumesCapacity() {
		c.Reserved += item.Quantity
		return
	}
	c.Cancelled += item.Quantity
}

// Total is every unit routed to the ticket type.
func (c Counts) Total() int {
	return c.Sold + c.Reserved + c.Cancelled
}

// Tally maps ticket type id to its bucket sums.
type Tally map[string]Counts

// Add folds one item into the tally.
func (t Tally) Add(item Item) {
	counts := t[item.TicketTypeID]
	counts.Add(item)
	t[item.TicketTypeID] = counts
}

// AddAll folds a batch of items into the tally.
func (t Tally) AddAll(items []Item) {
	for _, item := range items {
		t.Add(item)
	}
}

// Aggregate sums items per ticket type. Only addition is involved, so the
// result does not depend on item order.
func Aggregate(items []Item) Tally {
	t := Tally{}
	t.AddAll(items)
	return t
}
