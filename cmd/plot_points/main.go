// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// plot_points reports and plots the training curve points saved by meta_analysis (files named
// "training_plot_points.json"), for one or more experiments.
//
// Each argument is a directory with the points file. Experiments are named by the minimal part of their paths
// that tells them apart.
//
// Example:
//
//	plot_points -types f1 -html /tmp/f1.html plots_meta_analysis/plot_points/seed_*
package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/attnlens/attnlens/pkg/support/sets"
	"github.com/attnlens/attnlens/pkg/support/xslices"
	"github.com/attnlens/attnlens/ui/commandline"
	"github.com/attnlens/attnlens/ui/plots"
	"github.com/attnlens/attnlens/ui/plots/margaid"
	"github.com/attnlens/attnlens/ui/plots/plotly"
	"github.com/charmbracelet/lipgloss"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagTable  = flag.Bool("table", true, "Print the table of metrics per step.")
	flagLabels = flag.Bool("labels", false, "List the metrics short names with their full names.")
	flagNames  = flag.String("names", "", "Regular expression: if it matches the name or short name of a metric, the metric is included.")
	flagTypes  = flag.String("types", "", "Comma-separated list of metric types to include.")
	flagHTML   = flag.String("html", "", "If set, write the Plotly plots (one per metric type) to this HTML file.")
	flagSVG    = flag.String("svg", "", "If set, write the Margaid SVG plots (one per metric type) to this directory.")
	flagLogX   = flag.Bool("logx", false, "Use a log scale for the steps in the plots.")
)

var titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	dirs := flag.Args()
	if len(dirs) == 0 {
		klog.Errorf("Missing directories with %q to read from. See 'plot_points -help'", plots.PointsFileName)
		os.Exit(1)
	}

	names := MinimalUniquePaths(dirs...)
	all := make(plots.Points)
	shortToName := make(map[string]string)
	seenTypes := sets.Make[string]()
	keep := newFilter()
	for ii, dir := range dirs {
		rawPoints := must.M1(plots.LoadPointsFromDir(dir))
		if len(rawPoints) == 0 {
			klog.Warningf("No points in %q", dir)
			continue
		}
		points := plots.NewPoints(rawPoints)
		points.Map(func(p *plots.Point) { seenTypes.Insert(p.MetricType) })
		points.Filter(keep)
		points.Map(func(p *plots.Point) {
			shortToName[p.Short] = p.MetricName
			if len(dirs) > 1 {
				p.MetricName = fmt.Sprintf("%s: %s", names[ii], p.Short)
			} else {
				p.MetricName = p.Short
			}
		})
		all.Add(points)
	}
	if *flagTypes != "" {
		if missing := sets.MakeWith(strings.Split(*flagTypes, ",")...).Sub(seenTypes); len(missing) > 0 {
			klog.Warningf("Metric types %v not found, available types: %v", sets.Sorted(missing), sets.Sorted(seenTypes))
		}
	}
	if len(all) == 0 {
		klog.Errorf("No points selected from %v", dirs)
		os.Exit(1)
	}

	if *flagLabels {
		fmt.Println(titleStyle.Render("Metrics Labels"))
		table := commandline.NewTable("Short", "MetricName")
		for _, short := range xslices.SortedKeys(shortToName) {
			table.Row(short, shortToName[short])
		}
		fmt.Println(table.Render())
	}
	if *flagTable {
		fmt.Println(titleStyle.Render("Metrics Table"))
		fmt.Println(all.TableForMetrics())
	}

	if *flagHTML != "" {
		figs := plotly.New()
		if *flagLogX {
			figs.LogScale()
		}
		plots.AddPoints(figs, all)
		must.M(figs.WriteHTML(*flagHTML, "Training curves"))
		fmt.Printf("\nPlots written to:\t%s\n", *flagHTML)
	}
	if *flagSVG != "" {
		mgPlots := margaid.New(1024, 400)
		if *flagLogX {
			mgPlots.LogScaleX()
		}
		plots.AddPoints(mgPlots, all)
		files := must.M1(mgPlots.WriteSVGs(*flagSVG, "training_"))
		fmt.Printf("\nPlots written to:\t%s\n", strings.Join(files, ", "))
	}
	klog.V(1).Infof("%d points of %d metrics", len(all.Extract()), len(all.MetricsNames()))
}

// newFilter returns the point filter selected by -names and -types. Points are kept if they match either.
func newFilter() func(p plots.Point) bool {
	var namesMatcher *regexp.Regexp
	if *flagNames != "" {
		var err error
		namesMatcher, err = regexp.Compile(*flagNames)
		if err != nil {
			klog.Fatalf("Failed to compile -names=%q matcher: %v", *flagNames, err)
		}
	}
	var types sets.Set[string]
	if *flagTypes != "" {
		types = sets.MakeWith(strings.Split(*flagTypes, ",")...)
	}
	return func(p plots.Point) bool {
		if namesMatcher == nil && types == nil {
			return true
		}
		foundName := namesMatcher != nil && (namesMatcher.MatchString(p.MetricName) || namesMatcher.MatchString(p.Short))
		foundType := types != nil && types.Has(p.MetricType)
		return foundName || foundType
	}
}
