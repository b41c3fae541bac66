package apihttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"fincore/internal/chart"
	"fincore/internal/config"
	"fincore/internal/envelope"
	"fincore/internal/errs"
	"fincore/internal/executor"
	"fincore/internal/fetcher"
	"fincore/internal/logger"
	"fincore/internal/preferences"
	"fincore/internal/provider"
	"fincore/internal/stream"
)

const credentialHeaderPrefix = "x-credential-"

// reserved query parameters are read by the router, not passed to fetchers.
var reserved = map[string]bool{"provider": true, "keep_unknown": true, "chart": true}

type Router struct {
	exec *executor.Executor
	pi   *provider.Interface
	cfg  *config.Holder
	hub  *stream.Hub
}

func NewRouter(exec *executor.Executor, pi *provider.Interface, cfg *config.Holder, hub *stream.Hub) *Router {
	return &Router{exec: exec, pi: pi, cfg: cfg, hub: hub}
}

// Register mounts the routes under group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/catalog", r.handleCatalog)
	group.GET("/catalog/:standard", r.handleCatalogEntry)
	group.GET("/query/:standard", r.handleQuery)
	group.POST("/query/:standard", r.handleQuery)
	group.GET("/streams", r.handleStreams)
	group.GET("/streams/:id", r.handleStream)
	group.GET("/streams/:id/messages", r.handleStreamMessages)
	group.POST("/streams/:id/commands", r.handleStreamCommand)
	group.DELETE("/streams/:id", r.handleStreamClose)
}

func (r *Router) handleCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"standards": r.pi.Catalog(), "providers": r.pi.Registry().Providers()})
}

func (r *Router) handleCatalogEntry(c *gin.Context) {
	entry, err := r.pi.CatalogEntry(c.Param("standard"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// queryBody is the POST form of a query.
type queryBody struct {
	Provider    string         `json:"provider"`
	Params      map[string]any `json:"params"`
	Preferences map[string]any `json:"preferences"`
}

func (r *Router) handleQuery(c *gin.Context) {
	std := c.Param("standard")
	var body queryBody
	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			writeError(c, errs.Validation("invalid request body: %v", err))
			return
		}
	}
	params := make(map[string]any, len(body.Params))
	for k, v := range body.Params {
		params[k] = v
	}
	for k, vals := range c.Request.URL.Query() {
		if reserved[k] || len(vals) == 0 {
			continue
		}
		params[k] = strings.Join(vals, ",")
	}
	prov := body.Provider
	if q := c.Query("provider"); q != "" {
		prov = q
	}

	cfg := r.cfg.Current()
	prefs, unknown, err := preferences.Decode(body.Preferences, cfg.Preferences)
	if err != nil {
		writeError(c, errs.Validation("%v", err))
		return
	}
	creds := fetcher.Credentials(cfg.ResolveCredentials(r.pi.CredentialNames()))
	creds = creds.Merge(headerCredentials(c.Request.Header))

	env, err := r.exec.Run(c.Request.Context(), executor.Request{
		Standard:           std,
		Provider:           prov,
		Params:             params,
		Credentials:        creds,
		Preferences:        prefs,
		PreferenceWarnings: unknown,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if s, ok := env.Stream(); ok {
		r.hub.Add(s)
	}
	if flag(c, "chart") {
		attachChart(std, env, prefs)
	}
	payload, err := env.Encode(envelope.Options{KeepUnknown: flag(c, "keep_unknown")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// attachChart fills the envelope's chart slot when the charting extension
// is enabled. Failures become warnings.
func attachChart(std string, env *envelope.Envelope, prefs preferences.Preferences) {
	if prefs.ChartingExtension != chart.Extension {
		env.Warn(envelope.CategoryChart, "charting extension is not enabled")
		return
	}
	ch, err := chart.Render(std, env)
	if err != nil {
		env.Warn(envelope.CategoryChart, "chart not rendered: %v", err)
		return
	}
	env.Chart = ch
}

// headerCredentials reads X-Credential-<name> headers.
func headerCredentials(h http.Header) fetcher.Credentials {
	out := fetcher.Credentials{}
	for k, vals := range h {
		lk := strings.ToLower(k)
		if !strings.HasPrefix(lk, credentialHeaderPrefix) || len(vals) == 0 {
			continue
		}
		name := strings.TrimPrefix(lk, credentialHeaderPrefix)
		if v := strings.TrimSpace(vals[0]); name != "" && v != "" {
			out[name] = v
		}
	}
	return out
}

func flag(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}

// statusFor maps error kinds onto HTTP status codes.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusUnprocessableEntity
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindEmptyData:
		return http.StatusNoContent
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindNotImplemented:
		return http.StatusNotImplemented
	case errs.KindTransient:
		return http.StatusServiceUnavailable
	case errs.KindPermanent:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusNoContent {
		c.Header("X-Fincore-Error", err.Error())
		c.Status(status)
		return
	}
	body := gin.H{"kind": kind.String(), "message": err.Error()}
	var e *errs.Error
	if errors.As(err, &e) {
		if e.Standard != "" {
			body["standard"] = e.Standard
		}
		if e.Provider != "" {
			body["provider"] = e.Provider
		}
		if e.Field != "" {
			body["field"] = e.Field
		}
	}
	if status >= http.StatusInternalServerError {
		logger.Warnf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": body})
}
