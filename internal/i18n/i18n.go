// Package i18n loads the API's user-facing message bundles and resolves
// messages by locale. Korean is the default; English is the fallback chain's
// terminal locale, so every key must exist in en.yml.
package i18n

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yml
var localeFS embed.FS

// Bundle holds all loaded message catalogs keyed by locale.
type Bundle struct {
	defaultLocale string
	messages      map[string]map[string]string
}

// Load parses the embedded locale files into a Bundle.
func Load(defaultLocale string) (*Bundle, error) {
	b := &Bundle{
		defaultLocale: defaultLocale,
		messages:      make(map[string]map[string]string),
	}

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, entry := range entries {
		locale := strings.TrimSuffix(entry.Name(), ".yml")
		raw, err := localeFS.ReadFile("locales/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", locale, err)
		}
		catalog := make(map[string]string)
		if err := yaml.Unmarshal(raw, &catalog); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", locale, err)
		}
		b.messages[locale] = catalog
	}

	if _, ok := b.messages[defaultLocale]; !ok {
		return nil, fmt.Errorf("default locale %q has no message catalog", defaultLocale)
	}
	return b, nil
}

// T resolves key in the given locale, falling back to the default locale and
// then English. Arguments are applied with fmt.Sprintf.
func (b *Bundle) T(locale, key string, args ...any) string {
	for _, loc := range []string{locale, b.defaultLocale, "en"} {
		if catalog, ok := b.messages[loc]; ok {
			if msg, ok := catalog[key]; ok {
				if len(args) == 0 {
					return msg
				}
				return fmt.Sprintf(msg, args...)
			}
		}
	}
	return key
}

// Negotiate picks the best supported locale from an Accept-Language header
// value. Only the primary subtag is considered.
func (b *Bundle) Negotiate(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		primary := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if _, ok := b.messages[primary]; ok {
			return primary
		}
	}
	return b.defaultLocale
}
