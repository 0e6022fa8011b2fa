package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrailingDays(t *testing.T) {
	end := time.Date(2024, time.March, 2, 23, 30, 0, 0, time.UTC)

	days := TrailingDays(end, 3, time.UTC)

	assert.Equal(t, []string{"2024-02-29", "2024-03-01", "2024-03-02"}, days)
	assert.Empty(t, TrailingDays(end, 0, time.UTC))
}

func TestTrailingDaysAcrossDST(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	end := time.Date(2024, time.April, 1, 0, 30, 0, 0, london)

	days := TrailingDays(end, 3, london)

	assert.Equal(t, []string{"2024-03-30", "2024-03-31", "2024-04-01"}, days)
}

func TestDateKeyUsesLocation(t *testing.T) {
	instant := time.Date(2024, time.May, 10, 22, 0, 0, 0, time.UTC)
	kolkata := time.FixedZone("IST", 5*3600+1800)

	assert.Equal(t, "2024-05-10", DateKey(instant, time.UTC))
	assert.Equal(t, "2024-05-11", DateKey(instant, kolkata))
}

func TestSortedUniqueStrings(t *testing.T) {
	assert.Equal(t, []string{"12", "7", "unknown"}, SortedUniqueStrings([]string{"7", "12", "", "unknown", "7"}))
}

func TestInPlaceFilter(t *testing.T) {
	values := []int{1, 2, 3, 4, 5}

	InPlaceFilter(&values, func(v int) bool { return v%2 == 1 })

	assert.Equal(t, []int{1, 3, 5}, values)
}

func TestOverrideFromEnvironment(t *testing.T) {
	target := "default"

	OverrideFromEnvironment(map[string]string{"OTHER": "x"}, "BUSIFY_TEST", &target)
	assert.Equal(t, "default", target)

	OverrideFromEnvironment(map[string]string{"BUSIFY_TEST": "set"}, "BUSIFY_TEST", &target)
	assert.Equal(t, "set", target)
}
