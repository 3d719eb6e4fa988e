package util

import (
	"math"
	"testing"
)

func TestFormatClock(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00.000"},
		{75.5, "00:01:15.500"},
		{3661.25, "01:01:01.250"},
		{-3, "00:00:00.000"},
	}
	for _, tc := range cases {
		if got := FormatClock(tc.seconds); got != tc.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestParseFrameRate(t *testing.T) {
	if got := ParseFrameRate("30/1"); got != 30 {
		t.Errorf("ParseFrameRate(30/1) = %v, want 30", got)
	}
	if got := ParseFrameRate("30000/1001"); math.Abs(got-29.97) > 0.01 {
		t.Errorf("ParseFrameRate(30000/1001) = %v, want ~29.97", got)
	}
	for _, bad := range []string{"", "30", "a/b", "1/0"} {
		if got := ParseFrameRate(bad); got != 0 {
			t.Errorf("ParseFrameRate(%q) = %v, want 0", bad, got)
		}
	}
}
