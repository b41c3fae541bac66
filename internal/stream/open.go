package stream

import (
	"context"

	"fincore/internal/fetcher"
	"fincore/internal/schema"
	"fincore/internal/store/gormstore"
)

// Settings is the process-wide stream configuration handed to adapters.
type Settings struct {
	Config  Config
	Metrics *Metrics
	Dialer  Dialer
}

// Open builds and connects a client for a stream query. The query carries
// symbol, limit, and the optional broadcast_address and record_file.
func Open(ctx context.Context, set Settings, provider, standard string, proto Protocol, q schema.Record, creds fetcher.Credentials) (*Client, error) {
	limit, ok := q.Int("limit")
	if !ok || limit <= 0 {
		limit = 1000
	}
	c := New(Options{
		Provider:    provider,
		Standard:    standard,
		Protocol:    proto,
		Dialer:      set.Dialer,
		Credentials: creds,
		Symbols:     q.Strings("symbol"),
		Limit:       int(limit),
		Validate:    fetcher.RowValidatorFrom(ctx),
		Config:      set.Config,
		Metrics:     set.Metrics,
	})

	opts := SinkOptions{ClientID: c.ID(), Standard: standard, Broadcast: q.String("broadcast_address")}
	if path := q.String("record_file"); path != "" {
		log, err := gormstore.NewGormStore(path, 0)
		if err != nil {
			return nil, err
		}
		opts.RecordLog = log
		opts.OwnLog = true
	}
	sinks, err := NewSinks(opts)
	if err != nil {
		return nil, err
	}
	c.sinks = sinks

	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}
