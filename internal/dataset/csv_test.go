package dataset

import (
	"errors"
	"strings"
	"testing"
)

const csvHeader = "state,district,month,total_enrolment,enrol_age_0_5,enrol_age_5_17,enrol_age_18_plus,bio_age_5_17,bio_age_17_plus,demo_age_5_17,demo_age_17_plus"

func TestParseCSV(t *testing.T) {
	input := csvHeader + "\n" +
		"Alpha,North,2025-04,10000,5000,3000,1000,400,250,300,200\n" +
		"Alpha,North,2025-05,12000,6000,3600,1200,480,300,360,240\n"

	records, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.State != "Alpha" || first.District != "North" || first.Period != "2025-04" {
		t.Fatalf("unexpected key fields: %+v", first)
	}
	if first.TotalEnrolment != 10000 || first.EnrolAge18Plus != 1000 || first.BioAge17Plus != 250 {
		t.Fatalf("unexpected counters: %+v", first)
	}
}

func TestParseCSVBlankCellsMeanZero(t *testing.T) {
	input := csvHeader + "\n" +
		"Alpha,North,2025-04,10000,,,,,,,\n"

	records, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if records[0].EnrolAge0To5 != 0 || records[0].DemoAge17Plus != 0 {
		t.Fatalf("blank cells not zero: %+v", records[0])
	}
}

func TestParseCSVHeaderNormalization(t *testing.T) {
	// Upstream exports sometimes carry mixed-case headers.
	input := strings.ToUpper(csvHeader) + "\n" +
		"Alpha,North,2025-04,10000,5000,3000,1000,400,250,300,200\n"

	records, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "Empty", input: ""},
		{name: "MissingColumn", input: "state,district,month\nAlpha,North,2025-04\n"},
		{name: "MalformedCounter", input: csvHeader + "\nAlpha,North,2025-04,abc,0,0,0,0,0,0,0\n"},
		{name: "NegativeCounter", input: csvHeader + "\nAlpha,North,2025-04,-5,0,0,0,0,0,0,0\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseCSV(strings.NewReader(tc.input)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseCSVMissingColumnError(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("state,district,month\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}
