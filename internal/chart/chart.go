// Package chart renders envelope rows as self-contained go-echarts HTML.
package chart

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"fincore/internal/envelope"
	"fincore/internal/schema"
	"fincore/internal/standard"
)

const (
	Extension = "echarts"

	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorVolume        = "#a78bfa"

	chartWidthPx  = 1200
	chartHeightPx = 520
	volumeHeight  = 200
)

// Chart is what the router attaches to an envelope.
type Chart struct {
	Format  string `json:"format"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Render draws rows of std. Rows with open/high/low/close become candles
// with a volume bar per symbol; yield curves become one line per date; any
// other numeric series is drawn against its date.
func Render(std string, env *envelope.Envelope) (Chart, error) {
	rows := env.Rows()
	if len(rows) == 0 {
		return Chart{}, fmt.Errorf("no rows to chart")
	}
	title := std
	if env.Provider != "" {
		title = fmt.Sprintf("%s (%s)", std, env.Provider)
	}
	page := components.NewPage()
	page.PageTitle = title
	page.SetLayout(components.PageFlexLayout)

	switch {
	case std == standard.YieldCurve:
		page.AddCharts(curveChart(title, rows))
	case isOHLC(rows[0]):
		for _, sym := range symbols(rows) {
			series := bySymbol(rows, sym)
			page.AddCharts(candleChart(title, sym, series), volumeChart(sym, series))
		}
	default:
		field := firstNumeric(rows[0])
		if field == "" {
			return Chart{}, fmt.Errorf("%s has no numeric field to chart", std)
		}
		page.AddCharts(lineChart(title, field, rows))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return Chart{}, fmt.Errorf("render chart: %w", err)
	}
	return Chart{Format: "html", Title: title, Content: buf.String()}, nil
}

func initOpts(height int) opts.Initialization {
	return opts.Initialization{
		Theme:           types.ThemeWesteros,
		Width:           fmt.Sprintf("%dpx", chartWidthPx),
		Height:          fmt.Sprintf("%dpx", height),
		BackgroundColor: colorBackground,
	}
}

func titleOpts(title, subtitle string) opts.Title {
	return opts.Title{
		Title:         title,
		Subtitle:      subtitle,
		Left:          "left",
		TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 16},
		SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
	}
}

func axisOpts() (opts.XAxis, opts.YAxis) {
	return opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}, opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}
}

func candleChart(title, sym string, rows []schema.Record) *charts.Kline {
	x, y := axisOpts()
	k := charts.NewKLine()
	k.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(chartHeightPx)),
		charts.WithTitleOpts(titleOpts(title, sym)),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(x),
		charts.WithYAxisOpts(y),
	)
	k.SetSeriesOptions(charts.WithItemStyleOpts(opts.ItemStyle{
		Color:        colorBull,
		Color0:       colorBear,
		BorderColor:  colorBull,
		BorderColor0: colorBear,
	}))
	data := make([]opts.KlineData, 0, len(rows))
	for _, r := range rows {
		o, _ := r.Float("open")
		c, _ := r.Float("close")
		l, _ := r.Float("low")
		h, _ := r.Float("high")
		data = append(data, opts.KlineData{Value: [4]float64{o, c, l, h}})
	}
	k.SetXAxis(labels(rows)).AddSeries(sym, data)
	return k
}

func volumeChart(sym string, rows []schema.Record) *charts.Bar {
	x, y := axisOpts()
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(volumeHeight)),
		charts.WithTitleOpts(titleOpts("", sym+" volume")),
		charts.WithXAxisOpts(x),
		charts.WithYAxisOpts(y),
	)
	vols := make([]opts.BarData, len(rows))
	for i, r := range rows {
		v, ok := r.Float("volume")
		if !ok {
			vols[i] = opts.BarData{Value: nil}
			continue
		}
		vols[i] = opts.BarData{Value: v, ItemStyle: &opts.ItemStyle{Color: colorVolume}}
	}
	bar.SetXAxis(labels(rows)).AddSeries("volume", vols)
	return bar
}

func curveChart(title string, rows []schema.Record) *charts.Line {
	x, y := axisOpts()
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(chartHeightPx)),
		charts.WithTitleOpts(titleOpts(title, "rate (percent) by maturity")),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithXAxisOpts(x),
		charts.WithYAxisOpts(y),
	)
	line.SetXAxis(standard.Maturities)
	byDate := make(map[string]map[string]float64)
	var dates []string
	for _, r := range rows {
		d := label(r)
		if byDate[d] == nil {
			byDate[d] = make(map[string]float64)
			dates = append(dates, d)
		}
		if rate, ok := r.Float("rate"); ok {
			byDate[d][r.String("maturity")] = rate
		}
	}
	for _, d := range dates {
		points := make([]opts.LineData, len(standard.Maturities))
		for i, m := range standard.Maturities {
			if rate, ok := byDate[d][m]; ok {
				points[i] = opts.LineData{Value: rate}
			} else {
				points[i] = opts.LineData{Value: nil}
			}
		}
		line.AddSeries(d, points, charts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(true)}))
	}
	return line
}

func lineChart(title, field string, rows []schema.Record) *charts.Line {
	x, y := axisOpts()
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(chartHeightPx)),
		charts.WithTitleOpts(titleOpts(title, field)),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(x),
		charts.WithYAxisOpts(y),
	)
	points := make([]opts.LineData, len(rows))
	for i, r := range rows {
		if v, ok := r.Float(field); ok {
			points[i] = opts.LineData{Value: v}
		} else {
			points[i] = opts.LineData{Value: nil}
		}
	}
	line.SetXAxis(labels(rows)).AddSeries(field, points)
	return line
}

func isOHLC(r schema.Record) bool {
	for _, k := range []string{"open", "high", "low", "close"} {
		if _, ok := r.Float(k); !ok {
			return false
		}
	}
	return true
}

// symbols lists distinct symbols in first-seen order; rows without one
// share the empty symbol.
func symbols(rows []schema.Record) []string {
	var out []string
	for _, r := range rows {
		if s := r.String("symbol"); !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func bySymbol(rows []schema.Record, sym string) []schema.Record {
	out := make([]schema.Record, 0, len(rows))
	for _, r := range rows {
		if r.String("symbol") == sym {
			out = append(out, r)
		}
	}
	return out
}

func firstNumeric(r schema.Record) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if k == "date" || strings.HasSuffix(k, "_id") {
			continue
		}
		if _, ok := r[k].(float64); ok {
			return k
		}
		if _, ok := r[k].(int64); ok {
			return k
		}
	}
	return ""
}

func labels(rows []schema.Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = label(r)
	}
	return out
}

func label(r schema.Record) string {
	switch v := r["date"].(type) {
	case schema.Date:
		return v.String()
	case time.Time:
		return v.UTC().Format("2006-01-02 15:04")
	}
	return r.String("date")
}
