package enums

// Bucket is the inventory lifecycle bucket a line item is counted in.
type Bucket string

const (
	BucketSold        Bucket = "sold"
	BucketReserved    Bucket = "reserved"
	BucketTransferred Bucket = "transferred"
	BucketCancelled   Bucket = "cancelled"
)

var validBuckets = []Bucket{
	BucketSold,
	BucketReserved,
	BucketTransferred,
	BucketCancelled,
}

// IsValid reports whether the value matches a known bucket.
func (b Bucket) IsValid() bool {
	for _, candidate := range validBuckets {
		if candidate == b {
			return true
		}
	}
	return false
}

// ConsumesCapacity reports whether units in the bucket reduce availability.
// Sold, transferred and reserved units hold a seat; cancelled units do not.
func (b Bucket) ConsumesCapacity() bool {
	return b == BucketSold || b == BucketTransferred || b == BucketReserved
}

// CountsAsSold reports whether units in the bucket contribute to soldCount
// and utilization.
func (b Bucket) CountsAsSold() bool {
	return b == BucketSold || b == BucketTransferred
}
