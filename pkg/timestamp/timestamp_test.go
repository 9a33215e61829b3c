package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	ms := ToUnixMs(now)
	assert.Equal(t, now.UnixMilli(), ms)
	assert.True(t, FromUnixMs(ms).Equal(now))
}

func TestZeroValues(t *testing.T) {
	assert.Equal(t, int64(0), ToUnixMs(time.Time{}))
	assert.True(t, FromUnixMs(0).IsZero())
	assert.Equal(t, int64(0), SinceMs(0))
	assert.Equal(t, "", Format(0))
}

func TestSinceMs(t *testing.T) {
	past := Now() - 250
	elapsed := SinceMs(past)
	assert.GreaterOrEqual(t, elapsed, int64(250))
	assert.Less(t, elapsed, int64(5000))

	// Future timestamps clamp to zero
	assert.Equal(t, int64(0), SinceMs(Now()+60_000))
}

func TestFormat(t *testing.T) {
	ms := int64(1700000000000)
	formatted := Format(ms)
	parsed, err := time.Parse(time.RFC3339Nano, formatted)
	assert.NoError(t, err)
	assert.Equal(t, ms, parsed.UnixMilli())
}
