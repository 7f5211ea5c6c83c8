// Package i18n provides the message strings and number formatting used by the
// grade monitor view.
package i18n

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Messages maps logical keys to localized text.
type Messages map[string]string

// Locale is one language's strings plus its formatting rules.
type Locale struct {
	Tag          language.Tag
	Messages     Messages
	PointsSuffix string
	DateLayout   string
}

// Catalog holds every supported locale.
type Catalog struct {
	locales []Locale
	matcher language.Matcher
}

// NewCatalog builds a catalog; defaultLocale selects the fallback and an
// unknown or empty defaultLocale falls back to the first locale.
func NewCatalog(defaultLocale string, locales ...Locale) (*Catalog, error) {
	if len(locales) == 0 {
		return nil, fmt.Errorf("i18n catalog requires at least one locale")
	}
	ordered := make([]Locale, len(locales))
	copy(ordered, locales)
	if want, err := language.Parse(normalize(defaultLocale)); err == nil {
		wantBase, _ := want.Base()
		for i, l := range ordered {
			if base, _ := l.Tag.Base(); base == wantBase {
				// The matcher falls back to its first tag.
				ordered[0], ordered[i] = ordered[i], ordered[0]
				break
			}
		}
	}
	tags := make([]language.Tag, len(ordered))
	for i, l := range ordered {
		tags[i] = l.Tag
	}
	return &Catalog{locales: ordered, matcher: language.NewMatcher(tags)}, nil
}

// Default returns the built-in English and German catalog.
func Default(defaultLocale string) (*Catalog, error) {
	return NewCatalog(defaultLocale, English(), German())
}

// Bundle resolves locale, a tag that may use underscores or an
// Accept-Language list, to the closest supported language and returns a
// formatter for it.
func (c *Catalog) Bundle(ctx context.Context, locale string) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := 0
	if locale != "" {
		tags, _, err := language.ParseAcceptLanguage(normalize(locale))
		if err == nil && len(tags) > 0 {
			_, i, confidence := c.matcher.Match(tags...)
			if confidence != language.No {
				idx = i
			}
		}
	}
	l := c.locales[idx]
	return &Bundle{locale: l, printer: message.NewPrinter(l.Tag)}, nil
}

func normalize(locale string) string {
	return strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
}

// Bundle formats numbers and looks up strings for one language.
type Bundle struct {
	locale  Locale
	printer *message.Printer
}

// Tag is the resolved language.
func (b *Bundle) Tag() language.Tag {
	return b.locale.Tag
}

// Number formats v with at most one fraction digit.
func (b *Bundle) Number(v float64) string {
	return b.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(1)))
}

// Points formats v followed by the localized points unit.
func (b *Bundle) Points(v float64) string {
	return b.Number(v) + b.locale.PointsSuffix
}

// Date formats t with the locale's layout.
func (b *Bundle) Date(t time.Time) string {
	return t.Format(b.locale.DateLayout)
}

// Message returns the text for key, or key itself when it is missing.
func (b *Bundle) Message(key string) string {
	if msg, ok := b.locale.Messages[key]; ok {
		return msg
	}
	return key
}
