package treasury

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/gateway/httpclient"
	"fincore/internal/pkg/convert"
	"fincore/internal/schema"
	"fincore/internal/standard"
)

const csvDateLayout = "01/02/2006"

// columns maps the CSV headers onto canonical maturities.
var columns = map[string]string{
	"1 Mo": "month_1", "2 Mo": "month_2", "3 Mo": "month_3", "4 Mo": "month_4", "6 Mo": "month_6",
	"1 Yr": "year_1", "2 Yr": "year_2", "3 Yr": "year_3", "5 Yr": "year_5", "7 Yr": "year_7",
	"10 Yr": "year_10", "20 Yr": "year_20", "30 Yr": "year_30",
}

type yieldCurve struct {
	fetcher.Base
	client *httpclient.Client
	now    func() time.Time
}

func newYieldCurve(client *httpclient.Client) *yieldCurve {
	return &yieldCurve{client: client, now: time.Now}
}

func (f *yieldCurve) Info() fetcher.Info {
	return fetcher.Info{
		Standard:    standard.YieldCurve,
		Provider:    Name,
		Description: "Par yield curve rates. Dates without a published curve resolve to the nearest earlier one.",
		Query:       schema.Extension{MultipleItems: []string{"date"}},
	}
}

// requested returns the asked-for dates, or today when none were given.
func (f *yieldCurve) requested(q fetcher.Query) ([]schema.Date, error) {
	items := q.Strings("date")
	if len(items) == 0 {
		return []schema.Date{schema.DateOf(f.now())}, nil
	}
	out := make([]schema.Date, 0, len(items))
	for _, item := range items {
		d, err := schema.ParseDate(item)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// years lists the calendar files needed. Early January dates also pull the
// previous year, whose last curve may be the nearest one.
func years(dates []schema.Date) []int {
	var out []int
	for _, d := range dates {
		out = append(out, d.Year())
		if d.Month() == time.January && d.Day() <= 10 {
			out = append(out, d.Year()-1)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (f *yieldCurve) ExtractData(ctx context.Context, q fetcher.Query, _ fetcher.Credentials) (any, error) {
	dates, err := f.requested(q)
	if err != nil {
		return nil, errs.Validation("%v", err)
	}
	ys := years(dates)
	files := make([][]byte, len(ys))
	header := http.Header{}
	header.Set("Accept", "text/csv")
	g, gctx := errgroup.WithContext(ctx)
	for i, y := range ys {
		g.Go(func() error {
			body, err := f.client.Get(gctx, fmt.Sprintf("daily-treasury-rates.csv/%d/all", y), url.Values{
				"type":                 {"daily_treasury_yield_curve"},
				"field_tdr_date_value": {strconv.Itoa(y)},
				"_format":              {"csv"},
			}, header)
			if err != nil {
				if httpclient.StatusOf(err) == http.StatusNotFound {
					return nil
				}
				return err
			}
			files[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

type curve struct {
	date  schema.Date
	rates map[string]float64
}

func (f *yieldCurve) TransformData(q fetcher.Query, raw any) (any, error) {
	files, _ := raw.([][]byte)
	var curves []curve
	for _, body := range files {
		parsed, err := parseCSV(body)
		if err != nil {
			e := errs.Permanent(err, "malformed yield curve CSV")
			e.Provider = Name
			return nil, e
		}
		curves = append(curves, parsed...)
	}
	if len(curves) == 0 {
		return nil, nil
	}
	slices.SortFunc(curves, func(a, b curve) int { return a.date.Compare(b.date.Time) })

	dates, err := f.requested(q)
	if err != nil {
		return nil, errs.Validation("%v", err)
	}
	resolved := make(map[string]string, len(dates))
	seen := make(map[schema.Date]bool, len(dates))
	var rows []schema.Record
	for _, want := range dates {
		c, ok := nearest(curves, want)
		if !ok {
			continue
		}
		resolved[want.String()] = c.date.String()
		if seen[c.date] {
			continue
		}
		seen[c.date] = true
		for _, m := range standard.Maturities {
			if rate, ok := c.rates[m]; ok {
				rows = append(rows, schema.Record{"date": c.date, "maturity": m, "rate": rate})
			}
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return fetcher.AnnotatedResult{Result: rows, Metadata: map[string]any{"resolved_dates": resolved}}, nil
}

// nearest returns the last curve on or before want. curves must be sorted.
func nearest(curves []curve, want schema.Date) (curve, bool) {
	i, found := slices.BinarySearchFunc(curves, want, func(c curve, d schema.Date) int { return c.date.Compare(d.Time) })
	if found {
		return curves[i], true
	}
	if i == 0 {
		return curve{}, false
	}
	return curves[i-1], true
}

// parseCSV reads one yearly file. Blank cells are maturities not published
// that day and are omitted.
func parseCSV(body []byte) ([]curve, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, []byte("\ufeff"))))
	r.FieldsPerRecord = -1
	head, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(head) == 0 || !strings.EqualFold(strings.TrimSpace(head[0]), "Date") {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(head, ","))
	}
	var out []curve
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		t, err := time.Parse(csvDateLayout, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("row date: %w", err)
		}
		c := curve{date: schema.DateOf(t), rates: make(map[string]float64, len(columns))}
		for i := 1; i < len(rec) && i < len(head); i++ {
			m, ok := columns[strings.TrimSpace(head[i])]
			cell := strings.TrimSpace(rec[i])
			if !ok || cell == "" || strings.EqualFold(cell, "N/A") {
				continue
			}
			d, err := convert.ParseDecimal(cell)
			if err != nil {
				return nil, fmt.Errorf("%s on %s: %w", head[i], rec[0], err)
			}
			c.rates[m] = d.InexactFloat64()
		}
		out = append(out, c)
	}
}
