package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opensource-identity/shikra/internal/domain"
)

// ParseCSV reads the upstream ETL's CSV export into transaction records.
// The header row is validated against RequiredColumns before any row is
// parsed; extra columns are ignored. Blank numeric cells mean zero activity
// for that combination, while malformed cells fail the whole parse.
func ParseCSV(r io.Reader) ([]domain.TransactionRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.ToLower(header[i]))
	}

	if err := ValidateColumns(header); err != nil {
		return nil, err
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	var records []domain.TransactionRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line+1, err)
		}
		line++

		rec := domain.TransactionRecord{
			State:    strings.TrimSpace(row[col["state"]]),
			District: strings.TrimSpace(row[col["district"]]),
			Period:   strings.TrimSpace(row[col["month"]]),
		}

		counters := []struct {
			name string
			dst  *int64
		}{
			{"total_enrolment", &rec.TotalEnrolment},
			{"enrol_age_0_5", &rec.EnrolAge0To5},
			{"enrol_age_5_17", &rec.EnrolAge5To17},
			{"enrol_age_18_plus", &rec.EnrolAge18Plus},
			{"bio_age_5_17", &rec.BioAge5To17},
			{"bio_age_17_plus", &rec.BioAge17Plus},
			{"demo_age_5_17", &rec.DemoAge5To17},
			{"demo_age_17_plus", &rec.DemoAge17Plus},
		}
		for _, c := range counters {
			v, err := parseCounter(row[col[c.name]])
			if err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", line, c.name, err)
			}
			*c.dst = v
		}

		records = append(records, rec)
	}

	return records, nil
}

// parseCounter parses a non-negative integer counter cell. Blank means zero
// activity, not a missing district.
func parseCounter(cell string) (int64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid counter %q", cell)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative counter %d", v)
	}
	return v, nil
}
