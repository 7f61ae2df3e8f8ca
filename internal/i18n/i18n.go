// Package i18n localizes the messages shown to students and instructors.
// The en and ko catalogs are embedded; Init picks the fallback language used
// when a context carries no localizer of its own.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

type catalog struct {
	bundle   *i18n.Bundle
	fallback string
}

// current is replaced wholesale by Init, so engines and handlers on other
// goroutines always see a fully loaded catalog.
var current atomic.Pointer[catalog]

// Init loads every embedded locale and makes lang the fallback language.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)
	files, err := fs.Glob(localeFS, "locales/*.json")
	if err != nil {
		return fmt.Errorf("list locales: %w", err)
	}
	for _, name := range files {
		if _, err := b.LoadMessageFileFS(localeFS, name); err != nil {
			return fmt.Errorf("load locale %s: %w", name, err)
		}
	}

	current.Store(&catalog{bundle: b, fallback: lang})
	slog.Debug("message catalog loaded", "fallback", lang, "languages", b.LanguageTags())
	return nil
}

// NewLocalizer returns a localizer preferring langs in order, then the
// fallback language. It returns nil before Init.
func NewLocalizer(langs ...string) *i18n.Localizer {
	c := current.Load()
	if c == nil {
		return nil
	}
	return i18n.NewLocalizer(c.bundle, append(slices.Clip(langs), c.fallback)...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
}

// Tp translates a pluralized message. The count is available to the
// template as {{.Count}}.
func Tp(ctx context.Context, msgID string, count int) string {
	return localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

// localize falls back to the message ID when no catalog is loaded or the
// message is missing.
func localize(ctx context.Context, cfg *i18n.LocalizeConfig) string {
	loc, _ := ctx.Value(ctxKey{}).(*i18n.Localizer)
	if loc == nil {
		loc = NewLocalizer()
	}
	if loc == nil {
		return cfg.MessageID
	}
	s, err := loc.Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "error", err)
		return cfg.MessageID
	}
	return s
}
