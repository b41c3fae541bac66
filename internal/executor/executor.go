// Package executor runs one logical call end to end: provider resolution,
// credential gate, the fetcher lifecycle, fallback, multi-symbol fan-out and
// envelope assembly.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fincore/internal/envelope"
	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/logger"
	"fincore/internal/pkg/circuit"
	"fincore/internal/pkg/ids"
	"fincore/internal/pkg/redact"
	"fincore/internal/preferences"
	"fincore/internal/provider"
	"fincore/internal/registry"
	"fincore/internal/schema"
)

// Request is one call. Params use the merged query schema's names.
type Request struct {
	Standard    string
	Provider    string
	Params      map[string]any
	Credentials fetcher.Credentials
	Preferences preferences.Preferences
	// PreferenceWarnings are unknown preference keys found while decoding.
	PreferenceWarnings []string
	// Extras are copied into the envelope's extra mapping.
	Extras map[string]any
}

type Config struct {
	CircuitThreshold int
	CircuitTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.CircuitThreshold <= 0 {
		c.CircuitThreshold = 5
	}
	if c.CircuitTimeout <= 0 {
		c.CircuitTimeout = 30 * time.Second
	}
	return c
}

type Executor struct {
	pi       *provider.Interface
	reg      *registry.Registry
	breakers *circuit.Group
	metrics  *Metrics
	tracer   trace.Tracer
}

func New(pi *provider.Interface, cfg Config, metrics *Metrics) *Executor {
	cfg = cfg.withDefaults()
	breakers := circuit.NewGroup(cfg.CircuitThreshold, cfg.CircuitTimeout)
	breakers.SetStateChangeHandler(metrics.circuitChanged)
	return &Executor{
		pi:       pi,
		reg:      pi.Registry(),
		breakers: breakers,
		metrics:  metrics,
		tracer:   otel.Tracer("fincore/executor"),
	}
}

// Run executes req and returns its envelope, or exactly one typed error.
func (x *Executor) Run(ctx context.Context, req Request) (*envelope.Envelope, error) {
	start := time.Now()
	requestID := ids.RequestID()
	ctx, span := x.tracer.Start(ctx, "executor.Run", trace.WithAttributes(
		attribute.String("fincore.standard", req.Standard),
		attribute.String("fincore.request_id", requestID),
	))
	defer span.End()

	env, served, err := x.run(ctx, req)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = errs.KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		logger.With("request_id", requestID, "standard", req.Standard, "provider", served).
			Warn("call failed", "kind", outcome, "error", err.Error())
	}
	span.SetAttributes(attribute.String("fincore.provider", served))
	x.metrics.observe(req.Standard, served, outcome, elapsed)
	if err != nil {
		return nil, err
	}

	for k, v := range req.Extras {
		env.SetExtra(k, v)
	}
	if req.Preferences.IncludeMetadata {
		env.SetExtra("metadata", map[string]any{
			"request_id": requestID,
			"route":      req.Standard,
			"timestamp":  start.UTC().Format(time.RFC3339Nano),
			"duration":   elapsed.Seconds(),
			"arguments": redact.Map(map[string]any{
				"provider":         served,
				"standard_params":  req.Params,
				"credential_names": req.Credentials.Names(),
			}),
		})
	}
	return env, nil
}

func (x *Executor) run(ctx context.Context, req Request) (*envelope.Envelope, string, error) {
	std, err := x.reg.Standard(req.Standard)
	if err != nil {
		return nil, "", err
	}
	prov, err := x.pi.ChooseProvider(req.Standard, req.Provider, req.Preferences)
	if err != nil {
		return nil, "", err
	}
	var warnings []envelope.Warning
	for _, key := range req.PreferenceWarnings {
		warnings = append(warnings, envelope.Warning{
			Category: envelope.CategoryPreferences,
			Message:  fmt.Sprintf("unknown preference %q ignored", key),
		})
	}

	model, err := x.reg.Model(req.Standard, prov)
	if err != nil {
		return nil, prov, err
	}
	if !model.CredentialsValid(req.Credentials) {
		return nil, prov, model.Unauthorized(req.Credentials)
	}
	for _, key := range model.Query.Unknown(req.Params) {
		warnings = append(warnings, envelope.Warning{
			Category: envelope.CategoryParameters,
			Message:  fmt.Sprintf("parameter %q is not supported by %s and was ignored", key, prov),
		})
	}

	field, items := fanOutField(std, model, req.Params)
	timeout := req.Preferences.Timeout(max(len(items), 1))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = fetcher.WithCache(ctx, req.Preferences.UseCache)

	var (
		env    *envelope.Envelope
		served = prov
	)
	if field != "" {
		env, served, err = x.fanOut(ctx, req, std, model, field, items)
	} else {
		var out fetcher.Output
		var fb *fallbackNote
		out, served, fb, err = x.fetchOne(ctx, req, std, model, req.Params)
		if err == nil {
			env = envelope.New(served, out, x.dataSchema(std.Name, served, model))
			if fb != nil {
				env.Warn(envelope.CategoryFallback, "%s", fb)
			}
		}
	}
	if err != nil {
		return nil, served, err
	}

	env.AddWarnings(warnings...)
	if dep := model.Info.Deprecation; dep != "" {
		env.Warn(envelope.CategoryDeprecation, "%s/%s: %s", std.Name, prov, dep)
	}
	for _, hint := range qualityHints(req.Params, env.Rows()) {
		env.Warn(envelope.CategoryDataQuality, "%s", hint)
	}
	return env, served, nil
}

func (x *Executor) dataSchema(standard, served string, primary *fetcher.Model) schema.Schema {
	if served == primary.Info.Provider {
		return primary.Data
	}
	if m, err := x.reg.Model(standard, served); err == nil {
		return m.Data
	}
	return primary.Data
}

type fallbackNote struct {
	from, to string
	cause    error
}

func (n *fallbackNote) String() string {
	return fmt.Sprintf("%s failed (%v); results served by %s", n.from, n.cause, n.to)
}

// fetchOne runs the lifecycle against model and, on a transient failure,
// once against the configured fallback provider.
func (x *Executor) fetchOne(ctx context.Context, req Request, std schema.Standard, model *fetcher.Model, params map[string]any) (fetcher.Output, string, *fallbackNote, error) {
	out, err := x.attempt(ctx, model, params, req.Credentials)
	if err == nil || errs.KindOf(err) != errs.KindTransient {
		return out, model.Info.Provider, nil, err
	}
	if cerr := callerCanceled(ctx); cerr != nil {
		return out, model.Info.Provider, nil, cerr
	}
	alt := req.Preferences.Fallback(std.Name, std.Namespace)
	if alt == "" || alt == model.Info.Provider {
		return out, model.Info.Provider, nil, err
	}
	altModel, lookupErr := x.reg.Model(std.Name, alt)
	if lookupErr != nil {
		logger.Warnf("executor: fallback %s for %s unavailable: %v", alt, std.Name, lookupErr)
		return out, model.Info.Provider, nil, err
	}
	if !altModel.CredentialsValid(req.Credentials) {
		logger.Warnf("executor: fallback %s for %s lacks credentials", alt, std.Name)
		return out, model.Info.Provider, nil, err
	}
	x.metrics.fallback(std.Name, model.Info.Provider, alt)
	logger.Infof("executor: %s transient failure on %s, retrying with %s", std.Name, model.Info.Provider, alt)
	altOut, altErr := x.attempt(ctx, altModel, params, req.Credentials)
	if altErr != nil {
		return altOut, alt, nil, altErr
	}
	return altOut, alt, &fallbackNote{from: model.Info.Provider, to: alt, cause: err}, nil
}

// attempt is one pass through the lifecycle behind the provider's breaker.
// An open breaker counts as a transient failure.
func (x *Executor) attempt(ctx context.Context, model *fetcher.Model, params map[string]any, creds fetcher.Credentials) (fetcher.Output, error) {
	q, err := model.TransformQuery(params)
	if err != nil {
		return fetcher.Output{}, err
	}
	cb := x.breakers.Get(model.Info.Provider)
	if !cb.Allow() {
		e := errs.Transient(nil, "circuit open for provider %s", model.Info.Provider)
		e.Provider = model.Info.Provider
		e.Standard = model.Info.Standard
		return fetcher.Output{}, e
	}
	out, err := model.Run(ctx, q, creds)
	if errs.KindOf(err) == errs.KindTransient && callerCanceled(ctx) == nil {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return out, err
}

// callerCanceled reports a cancellation that came from the caller. Deadline
// expiry is not included; it stays a transient failure.
func callerCanceled(ctx context.Context) error {
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// fanOutField finds the first field the standard accepts as a list but the
// provider does not, when params carry more than one value for it.
func fanOutField(std schema.Standard, model *fetcher.Model, params map[string]any) (string, []string) {
	for _, f := range std.Query.Fields {
		if !f.Multiple {
			continue
		}
		pf, ok := model.Query.Field(f.Name)
		if !ok || pf.Multiple {
			continue
		}
		raw, ok := params[f.Name]
		if !ok || raw == nil {
			continue
		}
		items := splitItems(raw)
		if len(items) > 1 {
			return f.Name, items
		}
	}
	return "", nil
}

func splitItems(raw any) []string {
	var parts []string
	switch v := raw.(type) {
	case []string:
		parts = v
	case []any:
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
	default:
		parts = strings.Split(fmt.Sprint(v), ",")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
