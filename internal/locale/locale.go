// Package locale resolves the request locale and renders localized messages.
//
// The resolved tag travels in the request context; nothing here holds per-request
// state at package level.
package locale

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Header is the request header clients use to pick a locale.
const Header = "Locale"

type ctxKey struct{}

var fallbackTag = language.English

// Resolver matches a requested locale against the supported set.
type Resolver struct {
	supported []language.Tag
	matcher   language.Matcher
	fallback  language.Tag
}

// NewResolver builds a Resolver. The default locale is moved to the front of the
// supported list so unmatched requests fall back to it.
func NewResolver(def string, supported []string) (*Resolver, error) {
	defTag, err := language.Parse(strings.TrimSpace(def))
	if err != nil {
		return nil, fmt.Errorf("parse default locale %q: %w", def, err)
	}

	tags := []language.Tag{defTag}
	for _, s := range supported {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		t, err := language.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse supported locale %q: %w", s, err)
		}
		if t == defTag {
			continue
		}
		tags = append(tags, t)
	}

	return &Resolver{
		supported: tags,
		matcher:   language.NewMatcher(tags),
		fallback:  defTag,
	}, nil
}

// MustResolver panics on invalid configuration; used by tests and seeders.
func MustResolver(def string, supported ...string) *Resolver {
	r, err := NewResolver(def, supported)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the supported tag that best matches value, or the default.
func (r *Resolver) Resolve(value string) language.Tag {
	value = strings.TrimSpace(value)
	if value == "" {
		return r.fallback
	}

	requested, _, err := language.ParseAcceptLanguage(value)
	if err != nil || len(requested) == 0 {
		return r.fallback
	}

	_, idx, confidence := r.matcher.Match(requested...)
	if confidence == language.No {
		return r.fallback
	}
	return r.supported[idx]
}

func (r *Resolver) Default() language.Tag {
	return r.fallback
}

func (r *Resolver) Supported() []language.Tag {
	out := make([]language.Tag, len(r.supported))
	copy(out, r.supported)
	return out
}

// IsSupported reports whether code names one of the supported locales exactly.
func (r *Resolver) IsSupported(code string) bool {
	for _, t := range r.supported {
		if t.String() == code {
			return true
		}
	}
	return false
}

// WithTag stores the resolved locale in ctx.
func WithTag(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, ctxKey{}, tag)
}

// FromContext returns the request locale, English when none was resolved.
func FromContext(ctx context.Context) language.Tag {
	if ctx == nil {
		return fallbackTag
	}
	if t, ok := ctx.Value(ctxKey{}).(language.Tag); ok {
		return t
	}
	return fallbackTag
}

// Code is the short locale code stored alongside translations ("en", "es").
func Code(ctx context.Context) string {
	base, _ := FromContext(ctx).Base()
	return base.String()
}

// Printer returns a message printer for the request locale.
func Printer(ctx context.Context) *message.Printer {
	return message.NewPrinter(FromContext(ctx))
}

// T formats key in the request locale.
func T(ctx context.Context, key string, args ...any) string {
	return Printer(ctx).Sprintf(key, args...)
}
