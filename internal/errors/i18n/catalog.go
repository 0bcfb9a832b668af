// Package i18n provides localized user-facing messages for error codes.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// BaseLocale is the locale every code is guaranteed to have a message for.
const BaseLocale = "en-US"

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[string]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{}

	supported = []language.Tag{
		language.AmericanEnglish, // en-US, must stay first: fallback locale
	}
	matcher = language.NewMatcher(supported)
)

// GetCatalog returns the catalog for the given locale, falling back to en-US
// when the locale is unknown or has no registered messages.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}

	tag, _ := language.MatchStrings(matcher, requested)
	resolved := tag.String()

	catalogsMu.RLock()
	c, ok := catalogs[resolved]
	catalogsMu.RUnlock()
	if ok {
		return c
	}

	catalogsMu.RLock()
	base := catalogs[BaseLocale]
	catalogsMu.RUnlock()
	return base
}

// NewCatalog creates a catalog for a locale from a code-to-template map.
func NewCatalog(locale string, messages map[string]string) *Catalog {
	return &Catalog{locale: locale, messages: messages}
}

// Register installs a catalog, replacing any existing catalog for its locale.
func Register(c *Catalog) {
	if c == nil || c.locale == "" {
		return
	}
	catalogsMu.Lock()
	catalogs[c.locale] = c
	catalogsMu.Unlock()
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	if c == nil {
		return BaseLocale
	}
	return c.locale
}

// Format renders the message template for code with the given metadata.
// Unknown codes and template failures fall back to the raw code string.
func (c *Catalog) Format(code string, metadata map[string]string) string {
	if c == nil {
		return code
	}
	raw, ok := c.messages[code]
	if !ok {
		return code
	}
	if !strings.Contains(raw, "{{") {
		return raw
	}

	tmpl, err := template.New(code).Parse(raw)
	if err != nil {
		return raw
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, metadata); err != nil {
		return raw
	}
	return buf.String()
}
