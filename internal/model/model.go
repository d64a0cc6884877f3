package model

import (
	"html/template"
	"strings"
	"time"
	"unicode"

	"github.com/Bitlatte/blogserve/internal/content"
)

const (
	// PostsDir is the directory below the content root holding the posts.
	PostsDir = "posts"
	// PostExt is the extension of a post source file.
	PostExt = ".md"

	maxKeyLen = 128
)

// ContentKey is a validated identifier for a post or asset, taken from a
// single URL path segment.
type ContentKey string

// ParseKey validates segment as a content key. A key never contains path
// separators, control characters or "..", and never starts with a dot.
func ParseKey(segment string) (ContentKey, error) {
	if reason := keyProblem(segment); reason != "" {
		return "", &content.InvalidPathError{Path: "/" + segment, Reason: reason}
	}
	return ContentKey(segment), nil
}

func keyProblem(s string) string {
	switch {
	case s == "":
		return "empty name"
	case len(s) > maxKeyLen:
		return "name is too long"
	case strings.Contains(s, ".."):
		return `name contains ".."`
	case strings.HasPrefix(s, "."):
		return "name starts with a dot"
	}
	for _, r := range s {
		switch {
		case r == '/' || r == '\\':
			return "name contains a path separator"
		case unicode.IsControl(r):
			return "name contains a control character"
		case r > unicode.MaxASCII:
			return "name contains a non-ASCII character"
		case !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.'):
			return "name contains " + string(r)
		}
	}
	return ""
}

func (k ContentKey) String() string { return string(k) }

// PostPath is the logical path of the post source for k.
func (k ContentKey) PostPath() string {
	return PostsDir + "/" + string(k) + PostExt
}

// AssetPath is the logical path of k inside dir.
func (k ContentKey) AssetPath(dir string) string {
	if dir == "" {
		return string(k)
	}
	return dir + "/" + string(k)
}

// KeyFromPostPath is the inverse of PostPath. It reports false for names
// that are not post sources or do not yield a valid key.
func KeyFromPostPath(name string) (ContentKey, bool) {
	rest, ok := strings.CutPrefix(name, PostsDir+"/")
	if !ok {
		return "", false
	}
	slug, ok := strings.CutSuffix(rest, PostExt)
	if !ok {
		return "", false
	}
	key, err := ParseKey(slug)
	if err != nil {
		return "", false
	}
	return key, true
}

// Meta is the front matter of a post.
type Meta struct {
	Title       string
	Date        time.Time
	Description string
	Tags        []string
	Draft       bool
}

// RenderedPage is a fully assembled page. It is never modified once built;
// callers that need to mutate the document use Bytes.
type RenderedPage struct {
	Key   ContentKey
	Title string
	Meta  Meta
	Body  template.HTML
	HTML  []byte
}

// Bytes returns a copy of the assembled document.
func (p RenderedPage) Bytes() []byte {
	return append([]byte(nil), p.HTML...)
}

// PostSummary is a row of the home page listing.
type PostSummary struct {
	Key         ContentKey
	Title       string
	Date        time.Time
	Description string
}

// Permalink is the URL path of the post.
func (s PostSummary) Permalink() string {
	return "/" + string(s.Key)
}
