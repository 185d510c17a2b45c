// Package i18n serves the per-locale dictionaries of the site.
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/elasticcanvas/internal/logging"
)

//go:embed dictionaries/*.yaml
var embedded embed.FS

var ErrUnknownLocale = errors.New("i18n: unknown locale")

var rtlLocales = map[string]bool{"ar": true, "fa": true, "he": true, "ur": true}

// Dir returns the text direction of a locale, "rtl" or "ltr".
func Dir(locale string) string {
	if rtlLocales[locale] {
		return "rtl"
	}
	return "ltr"
}

// Negotiate picks the first Accept-Language entry whose primary subtag is
// supported, in header order. Quality values are not weighed.
func Negotiate(acceptLanguage string, supported []string, fallback string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		primary := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		for _, s := range supported {
			if s == primary {
				return s
			}
		}
	}
	return fallback
}

// Dictionary is a flattened locale document keyed by dotted paths.
type Dictionary struct {
	Locale  string
	entries map[string]string
}

// T returns the entry for key, or the key itself when it is missing.
func (d *Dictionary) T(key string) string {
	if v, ok := d.entries[key]; ok {
		return v
	}
	return key
}

func (d *Dictionary) Dir() string { return Dir(d.Locale) }

// Map returns a copy of all entries.
func (d *Dictionary) Map() map[string]string {
	out := make(map[string]string, len(d.entries))
	for k, v := range d.entries {
		out[k] = v
	}
	return out
}

func (d *Dictionary) Keys() []string {
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Catalog holds one Dictionary per supported locale. Entries from the
// override directory, when set, replace the embedded ones.
type Catalog struct {
	locales     []string
	fallback    string
	overrideDir string
	logger      *zap.Logger

	mu    sync.RWMutex
	dicts map[string]*Dictionary
}

func NewCatalog(locales []string, fallback, overrideDir string, logger *zap.Logger) (*Catalog, error) {
	c := &Catalog{
		locales:     locales,
		fallback:    fallback,
		overrideDir: overrideDir,
		logger:      logging.OrNop(logger),
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rebuilds every dictionary. On error the previous set stays in place.
func (c *Catalog) Reload() error {
	dicts := make(map[string]*Dictionary, len(c.locales))
	for _, locale := range c.locales {
		entries := make(map[string]string)

		data, err := fs.ReadFile(embedded, "dictionaries/"+locale+".yaml")
		if err != nil {
			return fmt.Errorf("%w: no bundled dictionary for %q", ErrUnknownLocale, locale)
		}
		if err := decode(data, entries); err != nil {
			return fmt.Errorf("bundled dictionary %s: %w", locale, err)
		}

		if c.overrideDir != "" {
			path := filepath.Join(c.overrideDir, locale+".yaml")
			data, err := os.ReadFile(path)
			switch {
			case err == nil:
				if err := decode(data, entries); err != nil {
					return fmt.Errorf("dictionary override %s: %w", path, err)
				}
			case !errors.Is(err, fs.ErrNotExist):
				return fmt.Errorf("read dictionary override: %w", err)
			}
		}

		dicts[locale] = &Dictionary{Locale: locale, entries: entries}
	}

	c.mu.Lock()
	c.dicts = dicts
	c.mu.Unlock()
	return nil
}

func (c *Catalog) Lookup(locale string) (*Dictionary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.dicts[locale]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocale, locale)
	}
	return d, nil
}

func (c *Catalog) Supported(locale string) bool {
	for _, l := range c.locales {
		if l == locale {
			return true
		}
	}
	return false
}

func (c *Catalog) Locales() []string { return append([]string(nil), c.locales...) }

func (c *Catalog) Default() string { return c.fallback }

func (c *Catalog) Negotiate(acceptLanguage string) string {
	return Negotiate(acceptLanguage, c.locales, c.fallback)
}

func decode(data []byte, into map[string]string) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	flatten("", doc, into)
	return nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}
