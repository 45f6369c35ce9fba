package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketKey_String(t *testing.T) {
	assert.Equal(t, "monday_09:00", BucketKey{Day: time.Monday, Hour: 9}.String())
	assert.Equal(t, "sunday_00:00", BucketKey{Day: time.Sunday, Hour: 0}.String())
	assert.Equal(t, "saturday_23:00", BucketKey{Day: time.Saturday, Hour: 23}.String())
}

func TestParseBucketKey_RoundTrip(t *testing.T) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		for h := range 24 {
			key := BucketKey{Day: d, Hour: h}
			parsed, err := ParseBucketKey(key.String())
			require.NoError(t, err)
			assert.Equal(t, key, parsed)
		}
	}
}

func TestParseBucketKey_Invalid(t *testing.T) {
	for _, s := range []string{"", "monday", "funday_09:00", "monday_24:00", "monday_09:30", "monday_x:00"} {
		_, err := ParseBucketKey(s)
		assert.Error(t, err, s)
	}
}

func TestParseWeekday(t *testing.T) {
	d, ok := ParseWeekday("Friday")
	assert.True(t, ok)
	assert.Equal(t, time.Friday, d)

	_, ok = ParseWeekday("someday")
	assert.False(t, ok)
}
