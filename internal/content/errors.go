// Package content holds the resource loaders and the error taxonomy shared
// by every stage of the rendering pipeline.
package content

import (
	"errors"
	"fmt"
	"log/slog"
)

// Kind identifies which member of the error taxonomy an error belongs to.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindInvalidPath
	KindRender
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidPath:
		return "invalid_path"
	case KindRender:
		return "render"
	case KindUnexpected:
		return "unexpected"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Kinds returns every declared error kind.
func Kinds() []Kind {
	return []Kind{KindNotFound, KindInvalidPath, KindRender, KindUnexpected}
}

// Error is implemented only by the error types of this package, so the set
// of kinds a handler has to cover is closed.
type Error interface {
	error
	Kind() Kind
	// LogAttrs returns the structured fields for the error record.
	LogAttrs() []slog.Attr
	sealed()
}

// NotFoundError reports a resource that does not exist below the root.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource %q not found", e.Path)
}

func (e *NotFoundError) Kind() Kind { return KindNotFound }

func (e *NotFoundError) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("path", e.Path)}
}

func (*NotFoundError) sealed() {}

// InvalidPathError reports a path that can never name a resource.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("path %q is not valid: %s", e.Path, e.Reason)
}

func (e *InvalidPathError) Kind() Kind { return KindInvalidPath }

func (e *InvalidPathError) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("path", e.Path), slog.String("reason", e.Reason)}
}

func (*InvalidPathError) sealed() {}

// RenderError reports a document whose front matter or Markdown could not be
// parsed.
type RenderError struct {
	Path   string
	Detail string
	Err    error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render %s: %s: %v", e.Path, e.Detail, e.Err)
	}
	return fmt.Sprintf("render %s: %s", e.Path, e.Detail)
}

func (e *RenderError) Unwrap() error { return e.Err }

func (e *RenderError) Kind() Kind { return KindRender }

func (e *RenderError) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("path", e.Path), slog.String("detail", e.Detail)}
	if e.Err != nil {
		attrs = append(attrs, slog.String("cause", e.Err.Error()))
	}
	return attrs
}

func (*RenderError) sealed() {}

// UnexpectedError wraps any failure outside the declared kinds, such as an
// I/O error or a template that fails to execute.
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

func (e *UnexpectedError) Kind() Kind { return KindUnexpected }

func (e *UnexpectedError) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("op", e.Op), slog.String("cause", fmt.Sprint(e.Err))}
}

func (*UnexpectedError) sealed() {}

// AsError returns the taxonomy error found in err's chain. Errors from
// outside the taxonomy are wrapped in an UnexpectedError. AsError(nil)
// returns nil.
func AsError(err error) Error {
	if err == nil {
		return nil
	}
	var ce Error
	if errors.As(err, &ce) {
		return ce
	}
	return &UnexpectedError{Op: "pipeline", Err: err}
}

// KindOf classifies err. It returns 0 for a nil error.
func KindOf(err error) Kind {
	ce := AsError(err)
	if ce == nil {
		return 0
	}
	return ce.Kind()
}
