package phone

import (
	"errors"
	"testing"
)

func TestNormalizerNormalize(t *testing.T) {
	n := NewNormalizer("US")

	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "+1 650-253-0000", want: "+16502530000"},
		{in: "(650) 253-0000", want: "+16502530000"},
		{in: "+44 20 7031 3000", want: "+442070313000"},
		{in: "", wantErr: true},
		{in: "not a number", wantErr: true},
	}

	for _, tc := range cases {
		got, err := n.Normalize(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidNumber) {
				t.Errorf("Normalize(%q) error = %v, want ErrInvalidNumber", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Normalize(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeE164FallsBackToTrimmedInput(t *testing.T) {
	if got := NormalizeE164("  abc  "); got != "abc" {
		t.Fatalf("NormalizeE164 = %q, want %q", got, "abc")
	}
}
