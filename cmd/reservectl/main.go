package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/ohowland/cgc_reserve/internal/pkg/charts"
	"github.com/ohowland/cgc_reserve/internal/pkg/config"
	"github.com/ohowland/cgc_reserve/internal/pkg/optimize"
	"github.com/ohowland/cgc_reserve/internal/pkg/results"
	"github.com/ohowland/cgc_reserve/internal/pkg/root"
	"github.com/ohowland/cgc_reserve/internal/pkg/settings"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	flag "github.com/spf13/pflag"
)

func main() {
	settingsPath := flag.StringP("settings", "s", "", "settings file (yaml or json), defaults when empty")
	reserve := flag.Float64P("reserve", "r", -1, "reserve requirement in MW, overrides the settings file")
	loadMax := flag.Float64("load-max", -1, "peak load in MW, overrides the settings file")
	snapshots := flag.IntP("snapshots", "n", 0, "number of hourly snapshots")
	method := flag.String("method", "bounded", "simplex variant: bounded, or standard for small cross-check models")
	csvPath := flag.String("csv", "", "write the results table to this CSV file")
	plotPath := flag.String("plot", "", "write a chart to this .png or .svg file")
	chart := flag.String("chart", "dispatch", "chart kind: "+strings.Join(charts.Kinds, ", "))
	width := flag.Int("width", 100, "terminal chart width")
	height := flag.Int("height", 15, "terminal chart height")
	verbose := flag.BoolP("verbose", "v", false, "debug logging")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	if err := config.SetupLogging(config.Log{Level: level}); err != nil {
		log.Fatal().Err(err).Msg("[Main] setup logging")
	}

	set, err := loadSettings(*settingsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] settings")
	}
	if *reserve >= 0 {
		set.Reserve = *reserve
	}
	if *loadMax >= 0 {
		set.LoadMax = *loadMax
	}
	if *snapshots > 0 {
		set.Snapshots = *snapshots
	}
	if err := set.Validate(); err != nil {
		log.Fatal().Err(err).Msg("[Main] settings")
	}

	m, err := optimize.ParseMethod(*method)
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] method")
	}
	system, err := root.New(optimize.Options{Method: m})
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] build system")
	}

	run, err := system.Run(context.Background(), set)
	if err != nil {
		fmt.Fprintln(os.Stderr, "solve failed:", err)
		os.Exit(1)
	}

	rep := run.Report
	fmt.Printf("objective %.2f, solved with %s simplex in %s\n\n", rep.Objective, run.Method, run.Elapsed)
	printStatistics(rep.Statistics)
	printPrices(rep.Prices)
	plotSeries(rep.Table, results.Dispatch, "Dispatch [MW]", *width, *height)
	plotSeries(rep.Table, results.Reserve, "Reserve [MW]", *width, *height)

	if *csvPath != "" {
		if err := writeCSV(*csvPath, rep.Table); err != nil {
			log.Fatal().Err(err).Msg("[Main] csv")
		}
	}
	if *plotPath != "" {
		if err := writePlot(*plotPath, rep, *chart); err != nil {
			log.Fatal().Err(err).Msg("[Main] plot")
		}
	}
}

func loadSettings(path string) (settings.Settings, error) {
	if path == "" {
		return settings.Default(), nil
	}
	return config.LoadSettings(path)
}

var rightAligned = tablewriter.WithConfig(tablewriter.Config{
	Row: tw.CellConfig{
		Alignment: tw.CellAlignment{Global: tw.AlignRight},
	},
})

func str(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func printStatistics(stats []results.Statistic) {
	table := tablewriter.NewTable(os.Stdout, rightAligned)
	table.Header([]string{"Asset", "Carrier", "Installed", "Optimal", "Supply", "Capex", "Opex", "Revenue", "CF", "Curtailment"})
	for _, s := range stats {
		table.Append([]string{
			s.Asset,
			s.Carrier,
			str(s.InstalledCapacity),
			str(s.OptimalCapacity),
			str(s.Supply),
			str(s.CapitalExpenditure),
			str(s.OperationalExpenditure),
			str(s.Revenue),
			str(s.CapacityFactor),
			str(s.Curtailment),
		})
	}
	table.Render()
	fmt.Println()
}

func printPrices(prices []results.PriceRow) {
	table := tablewriter.NewTable(os.Stdout, rightAligned)
	table.Header([]string{"Snapshot", "Energy", "Reserve"})
	for _, p := range prices {
		table.Append([]string{strconv.Itoa(p.Snapshot), str(p.Energy), str(p.Reserve)})
	}
	table.Render()
	fmt.Println()
}

var palette = []asciigraph.AnsiColor{
	asciigraph.Green, asciigraph.DarkOrange, asciigraph.Blue,
	asciigraph.Magenta, asciigraph.Yellow, asciigraph.DarkRed,
}

func plotSeries(tbl results.Table, parameter, caption string, width, height int) {
	names, series := tbl.Series(parameter)
	if len(series) == 0 {
		return
	}
	fmt.Println(asciigraph.PlotMany(series, asciigraph.Precision(1),
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Caption(caption),
		asciigraph.SeriesLegends(names...),
		asciigraph.SeriesColors(lo.RepeatBy(len(names), func(i int) asciigraph.AnsiColor {
			return palette[i%len(palette)]
		})...),
	))
	fmt.Println()
}

func writeCSV(path string, tbl results.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tbl.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writePlot(path string, rep results.Report, kind string) error {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := charts.Render(f, rep, kind, format); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
