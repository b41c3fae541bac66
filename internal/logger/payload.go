package logger

import (
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"fincore/internal/pkg/jsonutil"
	"fincore/internal/pkg/redact"
)

// Vendor payload dump. Disabled unless a writer is set; when enabled every
// adapter request/response is appended to it with credentials masked.
var (
	payloadMu   sync.Mutex
	payloadLog  *log.Logger
	payloadBody bool
)

func SetPayloadWriter(w io.Writer) {
	payloadMu.Lock()
	defer payloadMu.Unlock()
	if w == nil {
		payloadLog = nil
		return
	}
	payloadLog = log.New(w, "", log.LstdFlags)
}

// EnablePayloadDump toggles inclusion of response bodies.
func EnablePayloadDump(enabled bool) {
	payloadMu.Lock()
	payloadBody = enabled
	payloadMu.Unlock()
}

type payloadSection struct {
	Title string
	Body  string
}

func logPayload(kind, provider, target string, sections []payloadSection) {
	payloadMu.Lock()
	l := payloadLog
	payloadMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[VENDOR]")
	for _, tag := range []string{kind, provider} {
		if tag == "" {
			continue
		}
		b.WriteString("[")
		b.WriteString(tag)
		b.WriteString("]")
	}
	if target != "" {
		b.WriteString(" ")
		b.WriteString(redact.URL(target))
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.Title)
		if t == "" {
			t = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(t)
		b.WriteString(" ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	l.Print(b.String())
}

func LogVendorRequest(provider, method, target string, header http.Header) {
	var hb strings.Builder
	for key, vals := range redact.Header(header) {
		hb.WriteString(key)
		hb.WriteString(": ")
		hb.WriteString(strings.Join(vals, ","))
		hb.WriteString("\n")
	}
	logPayload("request", provider, method+" "+target, []payloadSection{{Title: "HEADERS", Body: hb.String()}})
}

func LogVendorResponse(provider, target string, status int, body []byte) {
	payloadMu.Lock()
	withBody := payloadBody
	payloadMu.Unlock()
	sections := []payloadSection{{Title: "STATUS", Body: http.StatusText(status)}}
	if withBody && len(body) > 0 {
		sections = append(sections, payloadSection{Title: "BODY", Body: jsonutil.Pretty(body)})
	}
	logPayload("response", provider, target, sections)
}
