package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CSVOptions holds options for CSV loading.
type CSVOptions struct {
	PeriodColumn string // Column name for periods (default: "year")
	ValueColumn  string // Column name for values (default: "value")
	IDColumn     string // Column name for the entity id (default: "entity")
	IDFilter     string // Only keep rows whose id equals this value
	HasHeader    bool   // Whether CSV has header row (default: true)
	Delimiter    rune   // Field delimiter (default: ',')
	SkipRows     int    // Number of rows to skip at start
}

// DefaultCSVOptions returns default options for CSV loading.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		PeriodColumn: "year",
		ValueColumn:  "value",
		IDColumn:     "entity",
		HasHeader:    true,
		Delimiter:    ',',
	}
}

// LoadCSV loads the series selected by opts.IDFilter from a CSV file.
func LoadCSV(filename string, opts *CSVOptions) (*Series, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadCSVFromReader(file, opts)
}

// LoadCSVFromReader loads a single series from an io.Reader. When the file
// holds several entities, opts.IDFilter selects one of them.
func LoadCSVFromReader(r io.Reader, opts *CSVOptions) (*Series, error) {
	all, err := LoadAllCSVFromReader(r, opts)
	if err != nil {
		return nil, err
	}
	if len(all) > 1 {
		return nil, fmt.Errorf("csv holds %d entities, set an id filter", len(all))
	}
	return all[0], nil
}

// LoadAllCSV loads every entity in a CSV file.
func LoadAllCSV(filename string, opts *CSVOptions) ([]*Series, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadAllCSVFromReader(file, opts)
}

// LoadAllCSVFromReader groups rows by entity id and returns one series per
// entity, in order of first appearance. Observations inside each series are
// sorted by period; duplicates are kept so that validation can reject them.
func LoadAllCSVFromReader(r io.Reader, opts *CSVOptions) ([]*Series, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}

	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	for i := 0; i < opts.SkipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, err
		}
	}

	periodIdx, valueIdx, idIdx := 0, 1, -1
	if opts.HasHeader {
		header, err := reader.Read()
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		periodIdx, valueIdx, idIdx = -1, -1, -1
		for i, h := range header {
			h = strings.TrimSpace(strings.Trim(h, "\""))
			switch {
			case strings.EqualFold(h, opts.PeriodColumn):
				periodIdx = i
			case strings.EqualFold(h, opts.ValueColumn):
				valueIdx = i
			case opts.IDColumn != "" && strings.EqualFold(h, opts.IDColumn):
				idIdx = i
			}
		}
		if periodIdx == -1 {
			return nil, fmt.Errorf("period column %q not found", opts.PeriodColumn)
		}
		if valueIdx == -1 {
			return nil, fmt.Errorf("value column %q not found", opts.ValueColumn)
		}
	}

	byID := make(map[string]*Series)
	var order []string

	line := opts.SkipRows
	if opts.HasHeader {
		line++
	}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		id := ""
		if idIdx >= 0 && idIdx < len(record) {
			id = strings.TrimSpace(strings.Trim(record[idIdx], "\""))
		}
		if opts.IDFilter != "" && id != opts.IDFilter {
			continue
		}
		if periodIdx >= len(record) || valueIdx >= len(record) {
			return nil, fmt.Errorf("line %d: expected at least %d fields", line, max(periodIdx, valueIdx)+1)
		}

		valStr := strings.TrimSpace(strings.Trim(record[valueIdx], "\""))
		if valStr == "" || valStr == "NA" || valStr == "null" {
			continue // missing observation
		}
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse value %q: %w", line, valStr, err)
		}

		period, err := parsePeriod(strings.TrimSpace(strings.Trim(record[periodIdx], "\"")))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		s, ok := byID[id]
		if !ok {
			s = &Series{Name: id}
			byID[id] = s
			order = append(order, id)
		}
		s.Observations = append(s.Observations, Observation{Period: period, Value: val})
	}

	if len(order) == 0 {
		return nil, errors.New("no valid data found in CSV")
	}

	result := make([]*Series, len(order))
	for i, id := range order {
		s := byID[id]
		sort.SliceStable(s.Observations, func(a, b int) bool {
			return s.Observations[a].Period < s.Observations[b].Period
		})
		result[i] = s
	}
	return result, nil
}

// parsePeriod accepts a bare year or a date and returns the year.
func parsePeriod(raw string) (int, error) {
	if year, err := strconv.Atoi(raw); err == nil {
		return year, nil
	}
	formats := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		"2006/01/02",
		"01/02/2006",
		"2006-01",
	}
	for _, layout := range formats {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Year(), nil
		}
	}
	return 0, fmt.Errorf("parse period %q", raw)
}

// SaveCSV writes series as entity,year,value rows.
func SaveCSV(w io.Writer, series ...*Series) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"entity", "year", "value"}); err != nil {
		return err
	}
	for _, s := range series {
		for _, o := range s.Observations {
			row := []string{
				s.Name,
				strconv.Itoa(o.Period),
				strconv.FormatFloat(o.Value, 'f', -1, 64),
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}
