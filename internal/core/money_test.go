package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"30000", 30000, true},
		{"30.000", 30000, true},
		{"30,000", 30000, true},
		{"1.250.000", 1250000, true},
		{"30k", 30000, true},
		{"30K", 30000, true},
		{"1,5k", 1500, true},
		{"1.2tr", 1200000, true},
		{"2tr", 2000000, true},
		{" 45.000 ₫ ", 45000, true},
		{"45000đ", 45000, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3k", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseAmountLenientAllowsZero(t *testing.T) {
	got, err := ParseAmountLenient("0")
	if err != nil || got != 0 {
		t.Fatalf("expected 0, got %d (err=%v)", got, err)
	}
}

func TestFormatVND(t *testing.T) {
	cases := map[int64]string{
		0:       "0 ₫",
		10000:   "10.000 ₫",
		1250000: "1.250.000 ₫",
	}
	for in, want := range cases {
		if got := FormatVND(in); got != want {
			t.Fatalf("FormatVND(%d) = %q, want %q", in, got, want)
		}
	}
}
