package monnify

import "testing"

func TestParseNairaToKobo(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		err  bool
	}{
		{"500", 50000, false},
		{"500.00", 50000, false},
		{"0.30", 30, false},
		{"1,50", 150, false},
		{" 70.00 ", 7000, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0.005", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseNairaToKobo(tc.in)
		if tc.err {
			if err == nil {
				t.Errorf("ParseNairaToKobo(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseNairaToKobo(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseNairaToKobo(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatKoboAsNaira(t *testing.T) {
	if got := FormatKoboAsNaira(147000); got != "1470.00" {
		t.Fatalf("expected 1470.00, got %s", got)
	}
	if got := FormatKoboAsNaira(30); got != "0.30" {
		t.Fatalf("expected 0.30, got %s", got)
	}
}
