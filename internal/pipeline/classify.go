package pipeline

import (
	"strings"

	"github.com/lodgetix/ticket-inventory/pkg/enums"
)

var statusAliases = map[string]enums.Bucket{
	"sold":        enums.BucketSold,
	"paid":        enums.BucketSold,
	"active":      enums.BucketSold,
	"completed":   enums.BucketSold,
	"reserved":    enums.BucketReserved,
	"pending":     enums.BucketReserved,
	"held":        enums.BucketReserved,
	"unpaid":      enums.BucketReserved,
	"transferred": enums.BucketTransferred,
	"cancelled":   enums.BucketCancelled,
	"canceled":    enums.BucketCancelled,
	"refunded":    enums.BucketCancelled,
	"void":        enums.BucketCancelled,
}

// LookupStatus maps a raw status to its bucket, reporting whether it was recognized.
func LookupStatus(status string) (enums.Bucket, bool) {
	bucket, ok := statusAliases[strings.ToLower(strings.TrimSpace(status))]
	return bucket, ok
}

// ClassifyStatus maps a raw status to a bucket. Missing or unrecognized
// statuses count as sold.
func ClassifyStatus(status string) enums.Bucket {
	if bucket, ok := LookupStatus(status); ok {
		return bucket
	}
	return enums.BucketSold
}
