package server

import (
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/Bitlatte/blogserve/internal/content"
)

// fallback is the page served in place of content that failed to render.
type fallback struct {
	status  int
	title   string
	message string
}

type mendFunc func(r *http.Request, err content.Error) fallback

// menders holds one fallback per error kind. NewHandler refuses to build a
// handler unless every kind in content.Kinds is covered.
var menders = map[content.Kind]mendFunc{
	content.KindRender: func(_ *http.Request, err content.Error) fallback {
		detail := "the document could not be parsed"
		var re *content.RenderError
		if errors.As(err, &re) && re.Detail != "" {
			detail = re.Detail
		}
		return fallback{status: http.StatusOK, title: "Bad markdown", message: "Bad markdown: " + detail}
	},
	content.KindNotFound: func(r *http.Request, _ content.Error) fallback {
		return fallback{status: http.StatusOK, title: "Not found", message: fmt.Sprintf("Path %s not found", r.URL.Path)}
	},
	content.KindInvalidPath: func(r *http.Request, err content.Error) fallback {
		reason := "it cannot name a page"
		var ie *content.InvalidPathError
		if errors.As(err, &ie) && ie.Reason != "" {
			reason = ie.Reason
		}
		return fallback{status: http.StatusOK, title: "Invalid path", message: fmt.Sprintf("%s is not valid: %s", r.URL.Path, reason)}
	},
	content.KindUnexpected: func(_ *http.Request, _ content.Error) fallback {
		return fallback{status: http.StatusInternalServerError, title: "Something went wrong", message: "An error occurred while processing your request."}
	},
}

func checkMenders() error {
	for _, kind := range content.Kinds() {
		if _, ok := menders[kind]; !ok {
			return fmt.Errorf("no fallback page for error kind %s", kind)
		}
	}
	return nil
}

// mend reports err and answers with the fallback page for its kind.
func (h *Handler) mend(w http.ResponseWriter, r *http.Request, err error) {
	ce := content.AsError(err)
	h.env.Errors.Report(r.Context(), ce)

	fb := menders[ce.Kind()](r, ce)
	page, perr := h.builder.Error(fb.title, fb.message)
	if perr != nil {
		h.env.Logger.Error("failed to render error page", "error", perr)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<!doctype html><html><body><p>" + html.EscapeString(fb.message) + "</p></body></html>"))
		return
	}
	h.writeHTML(w, fb.status, page)
}
