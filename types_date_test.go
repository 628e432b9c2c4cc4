package alm

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{in: "2025-06-27", want: "2025-06-27"},
		{in: "2025-7-1", want: "2025-07-01"},
		{in: "2025-06-27T16:20:00Z", want: "2025-06-27"},
		{in: "junk", err: true},
	}
	for _, tc := range tests {
		got, err := ParseDate(tc.in)
		if tc.err {
			if err == nil {
				t.Errorf("ParseDate(%q) accepted", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDate(%q): %v", tc.in, err)
			continue
		}
		if got.String() != tc.want {
			t.Errorf("ParseDate(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestDateOf(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	instant := ts("2025-06-28T01:00:00Z")

	if got := DateOf(instant, time.UTC); got.String() != "2025-06-28" {
		t.Errorf("UTC date %s, want 2025-06-28", got)
	}
	if got := DateOf(instant, ny); got.String() != "2025-06-27" {
		t.Errorf("New York date %s, want 2025-06-27", got)
	}
}

func TestDateAddNormalizes(t *testing.T) {
	d := MustParseDate("2025-06-30").Add(1)
	if d.String() != "2025-07-01" {
		t.Errorf("month rollover gave %s", d)
	}
	if got := MustParseDate("2025-06-29").Weekday(); got != time.Sunday {
		t.Errorf("2025-06-29 is %s, want Sunday", got)
	}
}

func TestDateCompare(t *testing.T) {
	a, b := MustParseDate("2025-06-27"), MustParseDate("2025-06-30")
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Error("date comparison out of order")
	}
}
