package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"fincore/internal/fetcher"
	"fincore/internal/logger"
	"fincore/internal/pkg/jsonutil"
	"fincore/internal/schema"
	"fincore/internal/stream"
)

type tailer interface {
	Tail(seq int64) ([]schema.Record, int64)
	Done() <-chan struct{}
}

func newStreamCmd(opts *rootOptions) *cobra.Command {
	q := &queryOptions{}
	var (
		symbol string
		poll   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stream <standard>",
		Short: "Open a stream and print rows as JSON lines",
		Long: `Open a streaming query and print every row as one JSON line on stdout.
Lines on stdin control the subscription:

  {"event":"subscribe","symbol":"ETHUSD,SOLUSD"}
  {"event":"unsubscribe","symbol":"BTCUSD"}`,
		Example: `  fincore stream CryptoQuote --provider binance --symbol BTCUSD`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer opts.close()
			a, cfg, err := opts.buildApp(cmd)
			if err != nil {
				return err
			}
			if symbol != "" {
				q.params = append(q.params, "symbol="+symbol)
			}
			req, err := q.request(args[0], cfg.Preferences)
			if err != nil {
				return err
			}
			if req.Credentials, err = credentials(a, q.creds); err != nil {
				return err
			}
			env, err := a.Executor().Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			s, ok := env.Stream()
			if !ok {
				return fmt.Errorf("%s did not return a stream", args[0])
			}
			defer s.Disconnect()
			logger.Infof("stream %s open on %s", s.ID(), env.Provider)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				if err := stream.ReadCommands(ctx, cmd.InOrStdin(), s); err != nil {
					logger.Warnf("stream commands: %v", err)
				}
			}()
			return follow(ctx, s, cmd.OutOrStdout(), poll)
		},
	}
	q.bind(cmd)
	cmd.Flags().StringVar(&symbol, "symbol", "", "Symbols to subscribe, comma separated")
	cmd.Flags().DurationVar(&poll, "poll", 250*time.Millisecond, "How often buffered rows are flushed")
	return cmd
}

// follow writes new rows until ctx ends or the stream stops.
func follow(ctx context.Context, s fetcher.Stream, w io.Writer, every time.Duration) error {
	t, ok := s.(tailer)
	if !ok {
		return fmt.Errorf("stream %s cannot be followed", s.ID())
	}
	enc := jsonutil.NewEncoder(w)
	ticker := time.NewTicker(max(every, 10*time.Millisecond))
	defer ticker.Stop()
	var seq int64
	flush := func() error {
		var rows []schema.Record
		rows, seq = t.Tail(seq)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return flush()
		case <-t.Done():
			return flush()
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		}
	}
}
