// Package codegen renders a typed Go client from the registry's merged
// query schemas: one params struct and one call per standard model.
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"
	"text/template"

	"fincore/internal/pkg/text"
	"fincore/internal/provider"
	"fincore/internal/registry"
	"fincore/internal/schema"
)

// DefaultPackage names the generated package when Options.Package is empty.
const DefaultPackage = "fincoreclient"

type Options struct {
	Package string
}

type fieldData struct {
	GoName   string
	Name     string
	GoType   string
	Doc      []string
	Kind     string
	Required bool
}

type modelData struct {
	Name      string
	Doc       []string
	Providers []string
	Fields    []fieldData
}

type fileData struct {
	Package      string
	Models       []modelData
	NeedsTime    bool
	NeedsStrings bool
}

var fileTemplate = template.Must(template.New("client").Parse(`// Code generated by fincore gen. DO NOT EDIT.

package {{.Package}}

import (
	"context"
{{- if .NeedsStrings}}
	"strings"
{{- end}}
{{- if .NeedsTime}}
	"time"
{{- end}}

	"fincore/internal/envelope"
	"fincore/internal/executor"
	"fincore/internal/fetcher"
)

// Runner executes a query; *executor.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, req executor.Request) (*envelope.Envelope, error)
}

// Client issues typed queries through a Runner.
type Client struct {
	Runner      Runner
	Credentials fetcher.Credentials
}

func New(r Runner, creds fetcher.Credentials) *Client {
	return &Client{Runner: r, Credentials: creds}
}
{{range .Models}}
// {{.Name}}Params are the query parameters of {{.Name}}.
{{- range .Doc}}
// {{.}}
{{- end}}
type {{.Name}}Params struct {
{{- range .Fields}}
{{- range .Doc}}
	// {{.}}
{{- end}}
	{{.GoName}} {{.GoType}}
{{- end}}
}

// Params converts p into the untyped form the executor validates.
func (p {{.Name}}Params) Params() map[string]any {
	out := map[string]any{}
{{- range .Fields}}
{{- if eq .Kind "string"}}
	if p.{{.GoName}} != "" {
		out["{{.Name}}"] = p.{{.GoName}}
	}
{{- else if eq .Kind "list"}}
	if len(p.{{.GoName}}) > 0 {
		out["{{.Name}}"] = strings.Join(p.{{.GoName}}, ",")
	}
{{- else if eq .Kind "date"}}
	if p.{{.GoName}} != nil {
		out["{{.Name}}"] = p.{{.GoName}}.Format("2006-01-02")
	}
{{- else if eq .Kind "datetime"}}
	if p.{{.GoName}} != nil {
		out["{{.Name}}"] = p.{{.GoName}}.Format(time.RFC3339)
	}
{{- else if eq .Kind "any"}}
	if p.{{.GoName}} != nil {
		out["{{.Name}}"] = p.{{.GoName}}
	}
{{- else}}
	if p.{{.GoName}} != nil {
		out["{{.Name}}"] = *p.{{.GoName}}
	}
{{- end}}
{{- end}}
	return out
}

// {{.Name}} runs the {{.Name}} standard model. An empty provider lets the
// executor choose one{{if .Providers}} of: {{range $i, $p := .Providers}}{{if $i}}, {{end}}{{$p}}{{end}}{{end}}.
func (c *Client) {{.Name}}(ctx context.Context, provider string, p {{.Name}}Params) (*envelope.Envelope, error) {
	return c.Runner.Run(ctx, executor.Request{
		Standard:    "{{.Name}}",
		Provider:    provider,
		Params:      p.Params(),
		Credentials: c.Credentials,
	})
}
{{end}}`))

// Generate renders the client source for every standard model known to pi,
// gofmt-formatted.
func Generate(pi *provider.Interface, opts Options) ([]byte, error) {
	if pi == nil {
		return nil, fmt.Errorf("codegen: nil provider interface")
	}
	data := fileData{Package: opts.Package}
	if data.Package == "" {
		data.Package = DefaultPackage
	}
	reg := pi.Registry()
	for _, name := range reg.ListStandardModels() {
		std, err := reg.Standard(name)
		if err != nil {
			return nil, err
		}
		merged, err := reg.MergedQuerySchema(name)
		if err != nil {
			return nil, err
		}
		providers, _ := reg.ListProviders(name)
		m := modelData{Name: text.Camel(name), Providers: providers, Doc: docLines(std.Description)}
		for _, f := range merged.Fields {
			fd := field(f)
			switch fd.Kind {
			case "date", "datetime":
				data.NeedsTime = true
			case "list":
				data.NeedsStrings = true
			}
			m.Fields = append(m.Fields, fd)
		}
		data.Models = append(data.Models, m)
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("codegen: execute template: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("codegen: format: %w", err)
	}
	return src, nil
}

func field(f registry.MergedField) fieldData {
	fd := fieldData{GoName: text.Camel(f.Name), Name: f.Name, Required: f.Required}
	switch {
	case f.Multiple:
		fd.GoType, fd.Kind = "[]string", "list"
	case f.Type == schema.TypeString:
		fd.GoType, fd.Kind = "string", "string"
	case f.Type == schema.TypeInteger:
		fd.GoType, fd.Kind = "*int64", "ptr"
	case f.Type == schema.TypeNumber:
		fd.GoType, fd.Kind = "*float64", "ptr"
	case f.Type == schema.TypeBoolean:
		fd.GoType, fd.Kind = "*bool", "ptr"
	case f.Type == schema.TypeDate:
		fd.GoType, fd.Kind = "*time.Time", "date"
	case f.Type == schema.TypeDateTime:
		fd.GoType, fd.Kind = "*time.Time", "datetime"
	default:
		fd.GoType, fd.Kind = "any", "any"
	}
	fd.Doc = docLines(f.Description)
	var notes []string
	if f.Required {
		notes = append(notes, "Required.")
	}
	if f.Default != nil {
		notes = append(notes, fmt.Sprintf("Default: %v.", f.Default))
	}
	if len(f.Choices) > 0 {
		choices := make([]string, len(f.Choices))
		for i, c := range f.Choices {
			choices[i] = fmt.Sprint(c)
		}
		notes = append(notes, "One of: "+strings.Join(choices, ", ")+".")
	}
	if !f.Standard && len(f.Providers) > 0 {
		notes = append(notes, "Accepted by: "+strings.Join(f.Providers, ", ")+".")
	}
	if len(notes) > 0 {
		fd.Doc = append(fd.Doc, strings.Join(notes, " "))
	}
	return fd
}

// docLines splits a description into comment lines, dropping anything that
// would end the comment early.
func docLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, "*/", "* /"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
