package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConnectedOn(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12 Aug 2024", "2024-08-12"},
		{"12 August 2024", "2024-08-12"},
		{"1 ene 2023", "2023-01-01"},
		{"05 abril 2022", "2022-04-05"},
		{"31-dic-2021", "2021-12-31"},
		{"3/mar/2020", "2020-03-03"},
		{"7, sep, 2019", "2019-09-07"},
		{"29 Feb 2024", "2024-02-29"}, // leap year
		{"15.oct.2018", "2018-10-15"},
		{"  9  JUL  2025  ", "2025-07-09"},
	}
	for _, tc := range cases {
		got, err := ParseConnectedOn(tc.in)
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseConnectedOnRejects(t *testing.T) {
	bad := []string{
		"",
		"Aug 12 2024",    // month first
		"12 Aug",         // missing year
		"32 Jan 2024",    // day out of range
		"0 Jan 2024",     // day zero
		"29 Feb 2023",    // not a leap year
		"31 Apr 2024",    // April has 30 days
		"12 Foo 2024",    // unknown month
		"12 Aug 1899",    // year below range
		"12 Aug 2101",    // year above range
		"12 Aug 2024 extra",
	}
	for _, in := range bad {
		_, err := ParseConnectedOn(in)
		assert.Error(t, err, in)
	}
}

func TestParseConnectedOnSpanishMonths(t *testing.T) {
	got, err := ParseConnectedOn("20 agosto 2023")
	assert.NoError(t, err)
	assert.Equal(t, "2023-08-20", got)

	got, err = ParseConnectedOn("2 noviembre 2022")
	assert.NoError(t, err)
	assert.Equal(t, "2022-11-02", got)
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, daysIn(2, 2000)) // divisible by 400
	assert.Equal(t, 28, daysIn(2, 1900)) // divisible by 100 only
	assert.Equal(t, 28, daysIn(2, 2023))
	assert.Equal(t, 30, daysIn(6, 2023))
	assert.Equal(t, 31, daysIn(12, 2023))
}
