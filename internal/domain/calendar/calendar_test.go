package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDay(t *testing.T) {
	oslo := time.FixedZone("CET", 3600)
	in := time.Date(2024, time.February, 29, 23, 30, 0, 0, oslo)

	got := Day(in)

	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), got)
}

func TestAddDays(t *testing.T) {
	base := time.Date(2024, time.February, 28, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), AddDays(base, 1))
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), AddDays(base, 2))
	assert.Equal(t, time.Date(2024, time.February, 27, 0, 0, 0, 0, time.UTC), AddDays(base, -1))
}

func TestSameDay(t *testing.T) {
	a := time.Date(2025, time.May, 1, 0, 0, 1, 0, time.UTC)
	b := time.Date(2025, time.May, 1, 23, 59, 0, 0, time.UTC)
	c := time.Date(2025, time.May, 2, 0, 0, 0, 0, time.UTC)

	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(b, c))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "9999-12-31", Format(time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)))
}
