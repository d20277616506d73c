package benford

import (
	"math"
	"testing"
)

func TestFirstTwoDigits(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  int
		ok    bool
	}{
		{name: "TwoDigit", input: 42, want: 42, ok: true},
		{name: "SingleDigitPadded", input: 7, want: 70, ok: true},
		{name: "LargeValue", input: 123456, want: 12, ok: true},
		{name: "ExactHundred", input: 100, want: 10, ok: true},
		{name: "UpperBound", input: 99999, want: 99, ok: true},
		{name: "FractionTruncates", input: 45.9, want: 45, ok: true},
		{name: "One", input: 1, want: 10, ok: true},
		{name: "Zero", input: 0, ok: false},
		{name: "Negative", input: -12, ok: false},
		{name: "SubOne", input: 0.5, ok: false},
		{name: "NaN", input: math.NaN(), ok: false},
		{name: "PosInf", input: math.Inf(1), ok: false},
		{name: "NegInf", input: math.Inf(-1), ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := FirstTwoDigits(tc.input)
			if ok != tc.ok {
				t.Fatalf("FirstTwoDigits(%v) ok = %v, want %v", tc.input, ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("FirstTwoDigits(%v) = %d, want %d", tc.input, got, tc.want)
			}
			if ok && (got < minDigit || got > maxDigit) {
				t.Fatalf("FirstTwoDigits(%v) = %d, outside [%d, %d]", tc.input, got, minDigit, maxDigit)
			}
		})
	}
}

func TestDigitSample(t *testing.T) {
	values := []int64{1234, 5, 0, -3, 987}
	sample := DigitSample(values)

	want := []int{12, 50, 98}
	if len(sample) != len(want) {
		t.Fatalf("DigitSample returned %d digits, want %d", len(sample), len(want))
	}
	for i, d := range want {
		if sample[i] != d {
			t.Fatalf("sample[%d] = %d, want %d", i, sample[i], d)
		}
	}
}

func TestDigitSampleEmpty(t *testing.T) {
	if sample := DigitSample(nil); len(sample) != 0 {
		t.Fatalf("expected empty sample, got %v", sample)
	}
}
