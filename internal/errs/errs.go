// Package errs defines the typed failures surfaced by the provider core.
//
// Every call returns at most one *Error. Callers branch on Kind, either through
// KindOf or with errors.Is against the sentinel values below.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthorized
	KindEmptyData
	KindTransient
	KindPermanent
	KindNotFound
	KindNotImplemented
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindEmptyData:
		return "empty_data"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindNotFound:
		return "not_found"
	case KindNotImplemented:
		return "not_implemented"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized}
	ErrEmptyData      = &Error{Kind: KindEmptyData}
	ErrTransient      = &Error{Kind: KindTransient}
	ErrPermanent      = &Error{Kind: KindPermanent}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrNotImplemented = &Error{Kind: KindNotImplemented}
)

type Error struct {
	Kind     Kind
	Standard string
	Provider string
	// Field is set when the failure is attributable to one schema field.
	Field string
	// Request is the redacted request line, never the raw URL.
	Request string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Provider != "" {
		b.WriteString(" [")
		b.WriteString(e.Provider)
		b.WriteString("]")
	}
	if e.Standard != "" {
		b.WriteString(" ")
		b.WriteString(e.Standard)
	}
	if e.Field != "" {
		b.WriteString(" field=")
		b.WriteString(e.Field)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Request != "" {
		b.WriteString(" (")
		b.WriteString(e.Request)
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Kind so that errors.Is(err, ErrTransient) works on any wrapped
// *Error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Kind == e.Kind && t.Standard == "" && t.Provider == "" && t.Msg == "" && t.Err == nil
}

// WithProvider returns a copy tagged with the provider, keeping existing tags.
func (e *Error) WithProvider(provider string) *Error {
	out := *e
	if out.Provider == "" {
		out.Provider = provider
	}
	return &out
}

func (e *Error) WithStandard(standard string) *Error {
	out := *e
	if out.Standard == "" {
		out.Standard = standard
	}
	return &out
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func Unauthorized(provider string, format string, args ...any) *Error {
	e := New(KindUnauthorized, format, args...)
	e.Provider = provider
	return e
}

func EmptyData(format string, args ...any) *Error {
	return New(KindEmptyData, format, args...)
}

func Transient(err error, format string, args ...any) *Error {
	return Wrap(KindTransient, err, format, args...)
}

func Permanent(err error, format string, args ...any) *Error {
	return Wrap(KindPermanent, err, format, args...)
}

// SchemaViolation reports provider output that does not match the declared
// data schema. It is always Permanent and names the field and provider.
func SchemaViolation(provider, field string, err error) *Error {
	return &Error{
		Kind:     KindPermanent,
		Provider: provider,
		Field:    field,
		Msg:      "provider output violates data schema",
		Err:      err,
	}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func NotImplemented(format string, args ...any) *Error {
	return New(KindNotImplemented, format, args...)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in err's chain. Context
// cancellation and deadline errors are reported as transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	if isTimeout(err) {
		return KindTransient
	}
	return KindUnknown
}

func IsSchemaViolation(err error) bool {
	e, ok := As(err)
	return ok && e.Kind == KindPermanent && e.Field != ""
}

// Fatal reports whether err must abort a multi-symbol call instead of being
// downgraded to a partial-failure warning.
func Fatal(err error) bool {
	switch KindOf(err) {
	case KindUnauthorized, KindValidation:
		return true
	}
	return IsSchemaViolation(err)
}

// Aggregate joins per-item failures into one error of the dominant kind.
// A single failure is returned unchanged.
func Aggregate(standard, provider string, failures []error) error {
	var list []error
	for _, err := range failures {
		if err != nil {
			list = append(list, err)
		}
	}
	switch len(list) {
	case 0:
		return nil
	case 1:
		return list[0]
	}
	kind := KindOf(list[0])
	for _, err := range list[1:] {
		if KindOf(err) != kind {
			kind = KindPermanent
			break
		}
	}
	if kind == KindUnknown {
		kind = KindPermanent
	}
	return &Error{
		Kind:     kind,
		Standard: standard,
		Provider: provider,
		Msg:      fmt.Sprintf("all %d items failed", len(list)),
		Err:      errors.Join(list...),
	}
}
