package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrequencySegment(t *testing.T) {
	cases := map[int64]string{
		0:   SegmentNew,
		1:   SegmentOneTime,
		2:   SegmentRegular,
		5:   SegmentRegular,
		6:   SegmentVIP,
		100: SegmentVIP,
	}
	for orders, want := range cases {
		assert.Equal(t, want, FrequencySegment(orders), "orders=%d", orders)
	}
}

func TestValueSegment(t *testing.T) {
	cases := []struct {
		spent float64
		want  string
	}{
		{0, SegmentNoPurchase},
		{-5, SegmentNoPurchase},
		{0.01, SegmentLowValue},
		{499.99, SegmentLowValue},
		{500, SegmentMediumValue},
		{999.99, SegmentMediumValue},
		{1000, SegmentHighValue},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ValueSegment(tc.spent), "spent=%v", tc.spent)
	}
}

func TestAbandonmentRate(t *testing.T) {
	assert.Equal(t, 0.0, abandonmentRate(0, 0))
	assert.Equal(t, 50.0, abandonmentRate(4, 2))
	assert.Equal(t, 33.33, abandonmentRate(3, 1))
	assert.Equal(t, 66.67, abandonmentRate(3, 2))
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("", "")
	assert.NoError(t, err)
	assert.True(t, r.IsZero())

	r, err = ParseDateRange("2024-01-01", "2024-01-31")
	assert.NoError(t, err)
	assert.Equal(t, "2024-01-01", r.Start.Format(dateLayout))
	// end covers the whole last day
	assert.Equal(t, "2024-02-01", r.End.Format(dateLayout))

	for _, bad := range [][2]string{
		{"2024-01-01", ""},
		{"", "2024-01-31"},
		{"01/01/2024", "2024-01-31"},
		{"2024-01-01", "tomorrow"},
		{"2024-02-01", "2024-01-01"},
	} {
		_, err := ParseDateRange(bad[0], bad[1])
		assert.Error(t, err, "%v", bad)
	}
}
