package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/sartorproj/revforecast/config"
	"github.com/sartorproj/revforecast/forecast"
	"github.com/sartorproj/revforecast/report"
	"github.com/sartorproj/revforecast/store"
	"github.com/sartorproj/revforecast/timeseries"
	"github.com/sartorproj/revforecast/worldbank"
)

// Output formats of the csv command.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

func loadCSVFlag(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	file := fs.Lookup("file").Value.String()
	if file == "" {
		return "", errors.New("-file is required")
	}
	return file, nil
}

// loadSeries reads every entity in file, or only entity when it is set.
func loadSeries(file, entity string) ([]*timeseries.Series, error) {
	opts := timeseries.DefaultCSVOptions()
	if entity == "" {
		return timeseries.LoadAllCSV(file, opts)
	}
	opts.IDFilter = entity
	s, err := timeseries.LoadCSV(file, opts)
	if err != nil {
		return nil, err
	}
	return []*timeseries.Series{s}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func runCSV(args []string, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	fs := flag.NewFlagSet("csv", flag.ContinueOnError)
	fs.String("file", "", "CSV file with entity,year,value columns")
	horizon := fs.Int("horizon", cfg.Horizon, "periods to forecast")
	holdout := fs.Int("holdout", 0, "also backtest on the last N observations")
	format := fs.String("format", formatTable, "output format: table, json or csv")
	entity := fs.String("entity", "", "only forecast this entity id")
	file, err := loadCSVFlag(fs, args)
	if err != nil {
		return err
	}
	switch *format {
	case formatTable, formatJSON, formatCSV:
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	all, err := loadSeries(file, *entity)
	if err != nil {
		return fmt.Errorf("load csv: %w", err)
	}

	opts := []forecast.Option{
		forecast.WithLogger(logger),
		forecast.WithSearch(cfg.SearchConfig()),
	}

	var (
		results  []*forecast.Result
		accIDs   []string
		accuracy []*forecast.Accuracy
		failed   int
	)
	for _, s := range all {
		result, err := forecast.Forecast(s.Name, s, *horizon, opts...)
		if err != nil {
			logger.Warn("entity forecast failed", "entity", s.Name, "error", err)
			failed++
			continue
		}
		results = append(results, result)

		if *holdout > 0 {
			acc, err := forecast.Backtest(s.Name, s, *holdout, opts...)
			if err != nil {
				logger.Warn("backtest skipped", "entity", s.Name, "error", err)
				continue
			}
			accIDs = append(accIDs, s.Name)
			accuracy = append(accuracy, acc)
		}
	}

	if err := writeResults(stdout, *format, results); err != nil {
		return err
	}
	if len(accuracy) > 0 && *format == formatTable {
		fmt.Fprintln(stdout)
		if err := report.NewPrinter(language.English).Accuracy(stdout, accIDs, accuracy); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d entities could not be forecast", failed, len(all))
	}
	return nil
}

func writeResults(w io.Writer, format string, results []*forecast.Result) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case formatCSV:
		series := make([]*timeseries.Series, len(results))
		for i, r := range results {
			s := &timeseries.Series{Name: r.EntityID}
			for _, p := range r.Points {
				s.Observations = append(s.Observations, timeseries.Observation{Period: p.Period, Value: p.Value})
			}
			series[i] = s
		}
		return timeseries.SaveCSV(w, series...)
	default:
		return report.NewPrinter(language.English).Forecasts(w, results)
	}
}

func runLoad(ctx context.Context, args []string, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	defaultCodes := make([]string, len(worldbank.DefaultIndicators))
	for i, ind := range worldbank.DefaultIndicators {
		defaultCodes[i] = ind.Code
	}

	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	file := fs.String("file", "", "CSV file with entity,year,value columns; entity is TYPE/NAME")
	fromWorldBank := fs.Bool("worldbank", false, "fetch macro indicators from the World Bank API")
	countries := fs.String("countries", strings.Join(worldbank.DefaultCountries, ","), "worldbank: ISO3 country codes")
	indicators := fs.String("indicators", strings.Join(defaultCodes, ","), "worldbank: indicator codes")
	from := fs.Int("from", 2000, "worldbank: first year")
	to := fs.Int("to", time.Now().Year(), "worldbank: last year")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*file == "") == !*fromWorldBank {
		return errors.New("exactly one of -file or -worldbank is required")
	}

	var (
		all []*timeseries.Series
		err error
	)
	if *fromWorldBank {
		client := worldbank.NewClient(cfg.WorldBankURL, nil, worldbank.WithMaxTries(cfg.WorldBankMaxTries))
		all, err = fetchWorldBank(ctx, client, splitList(*countries), splitList(*indicators), *from, *to, logger)
	} else {
		all, err = timeseries.LoadAllCSV(*file, timeseries.DefaultCSVOptions())
		if err != nil {
			err = fmt.Errorf("load csv: %w", err)
		}
	}
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	writer, ok := st.(store.ObservationWriter)
	if !ok {
		return errors.New("store does not accept observations")
	}

	observations := 0
	for _, s := range all {
		entity, err := store.ParseEntityID(s.Name)
		if err != nil {
			return err
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		if err := writer.WriteObservations(ctx, entity, s); err != nil {
			return err
		}
		observations += s.Len()
	}
	_, err = fmt.Fprintf(stdout, "loaded %d observations for %d entities\n", observations, len(all))
	return err
}

// fetchWorldBank downloads each country and indicator pair as a macro
// indicator series. Pairs without data are skipped.
func fetchWorldBank(ctx context.Context, client *worldbank.Client, countries, indicators []string, from, to int, logger *slog.Logger) ([]*timeseries.Series, error) {
	if len(countries) == 0 || len(indicators) == 0 {
		return nil, errors.New("at least one country and indicator are required")
	}

	var all []*timeseries.Series
	for _, country := range countries {
		for _, indicator := range indicators {
			s, err := client.FetchIndicator(ctx, country, indicator, from, to)
			if errors.Is(err, worldbank.ErrNoData) {
				logger.Warn("no world bank data", "country", country, "indicator", indicator)
				continue
			}
			if err != nil {
				return nil, err
			}
			s.Name = store.Entity{Type: store.KindMacroIndicator, Name: s.Name}.ID()
			all = append(all, s)
			logger.Info("fetched world bank indicator",
				"country", country, "indicator", indicator, "observations", s.Len())
		}
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no world bank data for %s", strings.Join(countries, ","))
	}
	return all, nil
}
