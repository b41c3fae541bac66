package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fincore/internal/envelope"
	"fincore/internal/executor"
	"fincore/internal/preferences"
)

type queryOptions struct {
	provider    string
	params      []string
	creds       []string
	prefs       []string
	keepUnknown bool
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	q := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query <standard>",
		Short: "Run one query and print the envelope as JSON",
		Example: `  fincore query EquityHistorical --param symbol=AAPL,MSFT --param start_date=2024-01-02
  fincore query YieldCurve --provider treasury --param date=2024-06-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer opts.close()
			a, cfg, err := opts.buildApp(cmd)
			if err != nil {
				return err
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
			if s, ok := env.Stream(); ok {
				defer s.Disconnect()
			}
			payload, err := env.Encode(envelope.Options{KeepUnknown: q.keepUnknown})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return err
		},
	}
	q.bind(cmd)
	cmd.Flags().BoolVar(&q.keepUnknown, "keep-unknown", false, "Keep provider fields the data schema does not declare")
	return cmd
}

func (q *queryOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.provider, "provider", "", "Provider to use (default: preferences, then registration order)")
	cmd.Flags().StringArrayVar(&q.params, "param", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&q.creds, "credential", nil, "Credential as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&q.prefs, "pref", nil, "Preference override as key=value (repeatable)")
}

func (q *queryOptions) request(standard string, base preferences.Preferences) (executor.Request, error) {
	params, err := parsePairs(q.params)
	if err != nil {
		return executor.Request{}, err
	}
	rawPrefs, err := parsePairs(q.prefs)
	if err != nil {
		return executor.Request{}, err
	}
	prefs, unknown, err := preferences.Decode(rawPrefs, base)
	if err != nil {
		return executor.Request{}, err
	}
	return executor.Request{
		Standard:           standard,
		Provider:           q.provider,
		Params:             params,
		Preferences:        prefs,
		PreferenceWarnings: unknown,
	}, nil
}
