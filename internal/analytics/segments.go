package analytics

// Frequency segments by order count
const (
	SegmentNew     = "New Customer"
	SegmentOneTime = "One-time Buyer"
	SegmentRegular = "Regular Customer"
	SegmentVIP     = "VIP Customer"
)

// Value segments by total spend
const (
	SegmentHighValue   = "High Value"
	SegmentMediumValue = "Medium Value"
	SegmentLowValue    = "Low Value"
	SegmentNoPurchase  = "No Purchase"
)

// FrequencySegment buckets a customer by number of orders
func FrequencySegment(orders int64) string {
	switch {
	case orders <= 0:
		return SegmentNew
	case orders == 1:
		return SegmentOneTime
	case orders <= 5:
		return SegmentRegular
	default:
		return SegmentVIP
	}
}

// ValueSegment buckets a customer by total spend
func ValueSegment(spent float64) string {
	switch {
	case spent >= 1000:
		return SegmentHighValue
	case spent >= 500:
		return SegmentMediumValue
	case spent > 0:
		return SegmentLowValue
	default:
		return SegmentNoPurchase
	}
}

// abandonmentRate is the abandoned share of started checkouts as a percentage with two decimals
func abandonmentRate(started, abandoned int64) float64 {
	if started == 0 {
		return 0
	}
	rate := float64(abandoned) / float64(started) * 100
	return float64(int64(rate*100+0.5)) / 100
}
