// Package timeseries provides the annual series type and its utilities.
//
// A Series holds (period, value) observations where the period is a year.
// Validate enforces the invariants every consumer relies on: at least one
// observation, finite values, and strictly increasing periods without
// duplicates. Series are never reordered after construction.
//
// # Creating a Series
//
//	series, err := timeseries.New([]int{2021, 2022, 2023}, []float64{100, 102, 105})
//	series := timeseries.FromValues(2021, []float64{100, 102, 105})
//
// # Loading from CSV
//
// Files hold one row per observation, with an entity column so that several
// series can share a file:
//
//	entity,year,value
//	company_revenue/Apple,2022,394328
//	company_revenue/Apple,2023,383285
//
//	all, err := timeseries.LoadAllCSV("series.csv", timeseries.DefaultCSVOptions())
//
//	opts := timeseries.DefaultCSVOptions()
//	opts.IDFilter = "company_revenue/Apple"
//	one, err := timeseries.LoadCSV("series.csv", opts)
//
// # Summaries
//
//	mean, std := series.Mean(), series.Std()
//	lo, mid, hi := series.Min(), series.Median(), series.Max()
//	train := series.Slice(0, series.Len()-2)
package timeseries
