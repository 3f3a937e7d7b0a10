package timeseries

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestLoadCSVFromReader(t *testing.T) {
	csvData := `entity,year,value
Apple,2019,260
Apple,2020,274
Apple,2021,294
Apple,2022,283
Apple,2023,295`

	series, err := LoadCSVFromReader(strings.NewReader(csvData), DefaultCSVOptions())
	if err != nil {
		t.Fatalf("Failed to load CSV: %v", err)
	}

	if series.Len() != 5 {
		t.Errorf("Expected 5 observations, got %d", series.Len())
	}
	if series.Name != "Apple" {
		t.Errorf("Expected name Apple, got %q", series.Name)
	}

	expected := []float64{260, 274, 294, 283, 295}
	values := series.Values()
	for i, v := range expected {
		if values[i] != v {
			t.Errorf("Value at index %d: expected %f, got %f", i, v, values[i])
		}
	}
}

func TestLoadAllCSVGroupsByEntity(t *testing.T) {
	csvData := `entity,year,value
Samsung,2021,244
Apple,2021,365
Samsung,2020,236
Apple,2020,274`

	all, err := LoadAllCSVFromReader(strings.NewReader(csvData), nil)
	if err != nil {
		t.Fatalf("Failed to load CSV: %v", err)
	}

	if len(all) != 2 {
		t.Fatalf("Expected 2 entities, got %d", len(all))
	}
	if all[0].Name != "Samsung" || all[1].Name != "Apple" {
		t.Errorf("Expected first-seen order [Samsung Apple], got [%s %s]", all[0].Name, all[1].Name)
	}
	for _, s := range all {
		if err := s.Validate(); err != nil {
			t.Errorf("%s: expected sorted valid series, got %v", s.Name, err)
		}
	}
}

func TestLoadCSVWithFilter(t *testing.T) {
	csvData := `entity,year,value
A,2020,100
B,2020,200
A,2021,101
B,2021,201
A,2022,102`

	opts := DefaultCSVOptions()
	opts.IDFilter = "A"

	series, err := LoadCSVFromReader(strings.NewReader(csvData), opts)
	if err != nil {
		t.Fatalf("Failed to load CSV: %v", err)
	}

	expected := []float64{100, 101, 102}
	values := series.Values()
	if len(values) != len(expected) {
		t.Fatalf("Expected %d observations for 'A', got %d", len(expected), len(values))
	}
	for i, v := range expected {
		if values[i] != v {
			t.Errorf("Value at index %d: expected %f, got %f", i, v, values[i])
		}
	}

	opts.IDFilter = ""
	if _, err := LoadCSVFromReader(strings.NewReader(csvData), opts); err == nil {
		t.Error("Expected error when several entities are present without a filter")
	}
}

func TestLoadCSVMissingAndNonFinite(t *testing.T) {
	csvData := `entity,year,value
X,2019,100
X,2020,NA
X,2021,
X,2022,NaN`

	series, err := LoadCSVFromReader(strings.NewReader(csvData), nil)
	if err != nil {
		t.Fatalf("Failed to load CSV: %v", err)
	}

	// NA and empty cells are missing observations; NaN is kept for validation to reject.
	if series.Len() != 2 {
		t.Fatalf("Expected 2 observations, got %d", series.Len())
	}
	if !math.IsNaN(series.Observations[1].Value) {
		t.Errorf("Expected NaN to be kept, got %f", series.Observations[1].Value)
	}
	if err := series.Validate(); !errors.Is(err, ErrNonFinite) {
		t.Errorf("Expected ErrNonFinite, got %v", err)
	}
}

func TestLoadCSVPeriodFormats(t *testing.T) {
	testCases := []struct {
		name    string
		csvData string
	}{
		{"year only", "entity,year,value\nX,2020,100\nX,2021,101"},
		{"iso date", "entity,year,value\nX,2020-12-31,100\nX,2021-12-31,101"},
		{"quoted", "\"entity\",\"year\",\"value\"\n\"X\",\"2020\",\"100\"\n\"X\",\"2021\",\"101\""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			series, err := LoadCSVFromReader(strings.NewReader(tc.csvData), nil)
			if err != nil {
				t.Fatalf("Failed to load CSV: %v", err)
			}
			periods := series.Periods()
			if len(periods) != 2 || periods[0] != 2020 || periods[1] != 2021 {
				t.Errorf("Expected periods [2020 2021], got %v", periods)
			}
		})
	}
}

func TestLoadCSVErrors(t *testing.T) {
	testCases := []struct {
		name    string
		csvData string
	}{
		{"missing value column", "entity,year,revenue\nX,2020,1"},
		{"bad value", "entity,year,value\nX,2020,abc"},
		{"bad period", "entity,year,value\nX,someday,1"},
		{"no rows", "entity,year,value\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadAllCSVFromReader(strings.NewReader(tc.csvData), nil); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadCSVNoHeader(t *testing.T) {
	opts := DefaultCSVOptions()
	opts.HasHeader = false

	series, err := LoadCSVFromReader(strings.NewReader("2020,1.5\n2021,2.5"), opts)
	if err != nil {
		t.Fatalf("Failed to load CSV: %v", err)
	}
	if series.LastPeriod() != 2021 {
		t.Errorf("Expected last period 2021, got %d", series.LastPeriod())
	}
}

func TestSaveCSVRoundTrip(t *testing.T) {
	original := FromValues(2020, []float64{1.25, 2.5})
	original.Name = "X"

	var buf bytes.Buffer
	if err := SaveCSV(&buf, original); err != nil {
		t.Fatalf("SaveCSV failed: %v", err)
	}

	loaded, err := LoadCSVFromReader(&buf, nil)
	if err != nil {
		t.Fatalf("Failed to reload CSV: %v", err)
	}
	if loaded.Name != "X" || loaded.Len() != 2 || loaded.Observations[1].Value != 2.5 {
		t.Errorf("Unexpected reloaded series: %+v", loaded)
	}
}

func TestDefaultCSVOptions(t *testing.T) {
	opts := DefaultCSVOptions()

	if opts.ValueColumn != "value" {
		t.Errorf("Expected default value column 'value', got '%s'", opts.ValueColumn)
	}
	if opts.PeriodColumn != "year" {
		t.Errorf("Expected default period column 'year', got '%s'", opts.PeriodColumn)
	}
	if !opts.HasHeader {
		t.Error("Expected HasHeader to be true by default")
	}
	if opts.Delimiter != ',' {
		t.Errorf("Expected default delimiter ',', got '%c'", opts.Delimiter)
	}
}
