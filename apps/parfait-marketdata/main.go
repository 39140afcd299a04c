// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/marketdata/db"
	"github.com/stockparfait/marketdata/estimator"
	"github.com/stockparfait/marketdata/marketdata"
	"github.com/stockparfait/marketdata/stats"
	"github.com/stockparfait/marketdata/table"
)

// Environment variables which override the storage secrets in the config.
const (
	EnvRedisAddr   = "MARKETDATA_REDIS_ADDR"
	EnvPostgresDSN = "MARKETDATA_POSTGRES_DSN"
)

// DatasourceUser selects the user provided CSV files.
const DatasourceUser = "user"

type Flags struct {
	Config   string // TOML config file
	CacheDir string // default location of the stored data
	LogLevel logging.Level
	CSV      bool   // dump CSV format; default: text.
	Download bool   // update the stored data and print its extent
	Calendar bool   // print the trading calendar
	Serve    string // print the data served at this date
	Summary  bool   // print the summary of the asset returns
	Sigma    int    // print rolling volatility estimates over this many periods
	Cov      bool   // print the covariance of returns served at the last date
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("parfait-marketdata", flag.ExitOnError)
	fs.StringVar(&flags.Config, "config", "", "TOML config file (required)")
	fs.StringVar(&flags.CacheDir, "cache",
		filepath.Join(os.Getenv("HOME"), ".stockparfait", "marketdata"),
		"default directory for the downloaded data")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")
	fs.BoolVar(&flags.Download, "download", false, "update the data and print its extent")
	fs.BoolVar(&flags.Calendar, "calendar", false, "print the trading calendar")
	fs.StringVar(&flags.Serve, "serve", "", "print the data served at this date")
	fs.BoolVar(&flags.Summary, "summary", false, "print the summary of returns")
	fs.IntVar(&flags.Sigma, "sigma", 0,
		"print the volatility of returns estimated over this many preceding periods")
	fs.BoolVar(&flags.Cov, "covariance", false,
		"print the covariance of returns for the universe at the last trading date")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if flags.Config == "" {
		return nil, errors.Reason("missing required -config argument")
	}
	n := 0
	for _, b := range []bool{flags.Download, flags.Calendar, flags.Serve != "",
		flags.Summary, flags.Sigma != 0, flags.Cov} {
		if b {
			n++
		}
	}
	if n != 1 {
		return nil, errors.Reason(
			"expected exactly one of -download, -calendar, -serve, -summary, -sigma, -covariance")
	}
	return &flags, nil
}

type Config struct {
	Universe         []string            `toml:"universe"`
	Datasource       string              `toml:"datasource"` // YahooFinance, Fred or user
	CashKey          string              `toml:"cash_key"`
	MinHistoryDays   int                 `toml:"min_history_days"`
	GracePeriod      string              `toml:"grace_period"` // e.g. "24h"
	TradingFrequency string              `toml:"trading_frequency"`
	OnlineUsage      bool                `toml:"online_usage"`
	Start            string              `toml:"start"` // calendar bounds, YYYY-MM-DD
	End              string              `toml:"end"`
	Storage          db.StorageConfig    `toml:"storage"`
	User             marketdata.CSVPaths `toml:"user"`
}

func parseConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open config file %s", path)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	var c Config
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", path)
	}
	return &c, nil
}

// applyEnv overrides the storage secrets from the environment or from the
// .env file in the cache directory, in this order of precedence.
func applyEnv(c *Config, cacheDir string) error {
	env, err := godotenv.Read(filepath.Join(cacheDir, ".env"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Annotate(err, "failed to read .env")
	}
	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return env[key]
	}
	if v := lookup(EnvRedisAddr); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := lookup(EnvPostgresDSN); v != "" {
		c.Storage.PostgresDSN = v
	}
	if c.Storage.Location == "" {
		c.Storage.Location = cacheDir
	}
	return nil
}

func (c *Config) params() (marketdata.Params, error) {
	freq, err := marketdata.ParseFrequency(c.TradingFrequency)
	if err != nil {
		return marketdata.Params{}, err
	}
	return marketdata.Params{
		CashKey:          c.CashKey,
		MinHistoryDays:   c.MinHistoryDays,
		TradingFrequency: freq,
		OnlineUsage:      c.OnlineUsage,
	}, nil
}

func parseDate(s string) (db.Date, error) {
	if s == "" {
		return db.Date{}, nil
	}
	return db.NewDateFromString(s)
}

// frames gives access to the full data of both MarketData implementations.
type frames interface {
	marketdata.MarketData
	Returns() *db.Frame
}

func loadData(ctx context.Context, c *Config) (frames, error) {
	p, err := c.params()
	if err != nil {
		return nil, err
	}
	if c.Datasource == DatasourceUser {
		up, err := marketdata.NewUserProvidedFromCSV(ctx, c.User, p)
		if err != nil {
			return nil, err
		}
		return up, nil
	}
	var grace time.Duration
	if c.GracePeriod != "" {
		if grace, err = time.ParseDuration(c.GracePeriod); err != nil {
			return nil, errors.Annotate(err, "invalid grace_period")
		}
	}
	storage, err := db.NewStorage(ctx, c.Storage)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open storage")
	}
	defer storage.Close()

	d, err := marketdata.NewDownloaded(ctx, marketdata.DownloadedParams{
		Params:      p,
		Universe:    c.Universe,
		Datasource:  c.Datasource,
		Storage:     storage,
		GracePeriod: grace,
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func extentTable(md frames) *table.Table {
	r := md.Returns()
	t := table.NewTable("Assets", "Periods", "First", "Last", "Periods per year")
	t.AddRow(table.Cells{
		table.Int(len(md.FullUniverse()) - 1),
		table.Int(r.Len()),
		r.First().String(),
		r.Last().String(),
		table.Int(md.PeriodsPerYear()),
	})
	return t
}

func snapshotTable(s *marketdata.Snapshot) *table.Table {
	t := table.NewTable("Asset", "Return", "Volume", "Price")
	for i, a := range s.CurrentReturns.Labels {
		row := table.Cells{a, table.Float(s.CurrentReturns.Values[i], 6), "", ""}
		if s.CurrentVolumes != nil {
			if v, ok := s.CurrentVolumes.Get(a); ok {
				row[2] = table.Float(v, 0)
			}
		}
		if s.CurrentPrices != nil {
			if v, ok := s.CurrentPrices.Get(a); ok {
				row[3] = table.Float(v, 2)
			}
		}
		t.AddRow(row)
	}
	return t
}

func tradingCalendar(md frames, c *Config) ([]db.Date, error) {
	start, err := parseDate(c.Start)
	if err != nil {
		return nil, errors.Annotate(err, "invalid start")
	}
	end, err := parseDate(c.End)
	if err != nil {
		return nil, errors.Annotate(err, "invalid end")
	}
	dates, err := md.TradingCalendar(start, end, true)
	if err != nil {
		return nil, errors.Annotate(err, "failed to compute the trading calendar")
	}
	return dates, nil
}

// covarianceTable evaluates the full sample covariance of returns as a
// constant estimator at the last trading date, restricted to the universe
// valid at that date.
func covarianceTable(md frames, c *Config) (*table.Table, error) {
	dates, err := tradingCalendar(md, c)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, db.NewError(db.MissingTimesError, "empty trading calendar")
	}
	t := dates[len(dates)-1]
	universe, err := md.UniverseAt(t)
	if err != nil {
		return nil, errors.Annotate(err, "failed to get the universe at %s", t)
	}
	cov, err := stats.Covariance(md.Returns())
	if err != nil {
		return nil, errors.Annotate(err, "failed to compute the covariance")
	}
	e := estimator.NewLabeledMatrixData(cov, estimator.DataOptions{DataIncludesCash: true})
	if err := estimator.InitializeRecursive(e, universe, dates[len(dates)-1:]); err != nil {
		return nil, err
	}
	v, err := estimator.ValuesInTimeRecursive(e, t)
	if err != nil {
		return nil, err
	}
	tbl := table.NewTable(append([]string{"Asset"}, universe...)...)
	for i, a := range universe {
		row := table.Cells{a}
		for j := range universe {
			row = append(row, table.Float(v.Matrix.At(i, j), 6))
		}
		tbl.AddRow(row)
	}
	return tbl, nil
}

func buildTable(ctx context.Context, flags *Flags, c *Config) (*table.Table, error) {
	md, err := loadData(ctx, c)
	if err != nil {
		return nil, errors.Annotate(err, "failed to load market data")
	}
	switch {
	case flags.Download:
		return extentTable(md), nil
	case flags.Calendar:
		dates, err := tradingCalendar(md, c)
		if err != nil {
			return nil, err
		}
		return table.FromDates(dates), nil
	case flags.Sigma != 0:
		f, err := stats.SigmaEstimate(md.Returns(), flags.Sigma)
		if err != nil {
			return nil, errors.Annotate(err, "failed to estimate volatility")
		}
		return table.FromFrame(f, 6), nil
	case flags.Cov:
		return covarianceTable(md, c)
	case flags.Serve != "":
		t, err := db.NewDateFromString(flags.Serve)
		if err != nil {
			return nil, errors.Annotate(err, "invalid -serve date")
		}
		s, err := md.Serve(t)
		if err != nil {
			return nil, errors.Annotate(err, "failed to serve %s", t)
		}
		return snapshotTable(s), nil
	}
	return stats.SummaryTable(stats.Summarize(md.Returns(), md.PeriodsPerYear())), nil
}

func printData(ctx context.Context, flags *Flags, w io.Writer) error {
	c, err := parseConfig(flags.Config)
	if err != nil {
		return err
	}
	if err := applyEnv(c, flags.CacheDir); err != nil {
		return err
	}
	tbl, err := buildTable(ctx, flags, c)
	if err != nil {
		return err
	}
	if flags.CSV {
		if err := tbl.WriteCSV(w, table.Params{}); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := tbl.WriteText(w, table.Params{}); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))
	if err := printData(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, "%s", err.Error())
		os.Exit(1)
	}
}
