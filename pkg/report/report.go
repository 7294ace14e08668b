// Package report renders an HTML overview of labeled congestion records.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/railflow/core/classifier"
	"github.com/kilianp07/railflow/core/model"
)

// Group counts congested records sharing a key.
type Group struct {
	Key       string `json:"key"`
	Total     int    `json:"total"`
	Congested int    `json:"congested"`
}

// Share returns the congested fraction of the group.
func (g Group) Share() float64 {
	if g.Total == 0 {
		return 0
	}
	return float64(g.Congested) / float64(g.Total)
}

// Stats aggregates a labeled dataset.
type Stats struct {
	Records        int     `json:"records"`
	CongestionRate float64 `json:"congestion_rate"`
	ByCategory     []Group `json:"by_category"`
	ByOccupancy    []Group `json:"by_occupancy"`
	BySignal       []Group `json:"by_signal"`
	ByHour         []Group `json:"by_hour"`
	// MeanSpeed holds the mean speed of free (index 0) and congested
	// (index 1) records.
	MeanSpeed [2]float64 `json:"mean_speed"`
}

// Summarize computes the report statistics of recs.
func Summarize(recs []model.LabeledRecord) Stats {
	s := Stats{Records: len(recs)}
	if len(recs) == 0 {
		return s
	}
	cat := map[string]*Group{}
	occ := map[string]*Group{}
	sig := map[string]*Group{}
	hour := map[string]*Group{}
	var speeds [2][]float64
	labels := make([]float64, len(recs))
	for i, r := range recs {
		add(cat, string(r.Category), r.Congestion)
		add(occ, strconv.Itoa(r.Occupancy), r.Congestion)
		add(sig, r.Signal.String(), r.Congestion)
		add(hour, fmt.Sprintf("%02d", r.HourOfDay), r.Congestion)
		speeds[r.Congestion] = append(speeds[r.Congestion], r.Speed)
		labels[i] = float64(r.Congestion)
	}
	s.CongestionRate = stat.Mean(labels, nil)
	for c := range speeds {
		if len(speeds[c]) > 0 {
			s.MeanSpeed[c] = stat.Mean(speeds[c], nil)
		}
	}
	s.ByCategory = sorted(cat)
	s.ByOccupancy = sorted(occ)
	s.BySignal = sorted(sig)
	s.ByHour = sorted(hour)
	return s
}

func add(m map[string]*Group, key string, label int) {
	g, ok := m[key]
	if !ok {
		g = &Group{Key: key}
		m[key] = g
	}
	g.Total++
	g.Congested += label
}

func sorted(m map[string]*Group) []Group {
	out := make([]Group, 0, len(m))
	for _, g := range m {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func shareChart(title, axis string, groups []Group) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: axis}),
		charts.WithYAxisOpts(opts.YAxis{Name: "congested share", Min: 0, Max: 1}),
	)
	x := make([]string, len(groups))
	y := make([]opts.BarData, len(groups))
	for i, g := range groups {
		x[i] = g.Key
		y[i] = opts.BarData{Value: g.Share()}
	}
	bar.SetXAxis(x).AddSeries("congestion", y)
	return bar
}

// Render writes the HTML report to w. The training report adds a chart of
// cross-validation accuracies when non-nil.
func Render(w io.Writer, s Stats, rep *classifier.Report) error {
	page := components.NewPage()
	page.SetPageTitle("Rail congestion report")

	speed := charts.NewBar()
	speed.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Mean speed by label",
			Subtitle: fmt.Sprintf("%d records, %.1f%% congested", s.Records, s.CongestionRate*100),
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "km/h"}),
	)
	speed.SetXAxis([]string{"free", "congested"}).AddSeries("speed", []opts.BarData{
		{Value: s.MeanSpeed[0]},
		{Value: s.MeanSpeed[1]},
	})

	page.AddCharts(
		speed,
		shareChart("Congestion by category", "category", s.ByCategory),
		shareChart("Congestion by occupancy", "trains in section", s.ByOccupancy),
		shareChart("Congestion by signal", "signal", s.BySignal),
		shareChart("Congestion by hour", "hour", s.ByHour),
	)
	if rep != nil {
		cv := charts.NewBar()
		cv.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{
				Title:    "Cross-validation accuracy",
				Subtitle: fmt.Sprintf("selected %s, test accuracy %.3f", rep.Family, rep.TestAccuracy),
			}),
			charts.WithYAxisOpts(opts.YAxis{Name: "accuracy", Min: 0, Max: 1}),
		)
		x := make([]string, len(rep.CV))
		y := make([]opts.BarData, len(rep.CV))
		for i, c := range rep.CV {
			x[i] = string(c.Family)
			y[i] = opts.BarData{Value: c.Mean}
		}
		cv.SetXAxis(x).AddSeries("mean", y)
		page.AddCharts(cv)
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}
