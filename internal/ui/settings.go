// Package ui holds the display settings passed explicitly to renderers.
package ui

import (
	"net/http"
	"strings"
	"time"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"

	themeCookie = "theme"
	cookieAge   = 365 * 24 * time.Hour
)

// Settings affect presentation only, never the computed figures.
type Settings struct {
	DarkMode bool
	Locale   string
	Currency string
}

func Defaults(darkMode bool) Settings {
	return Settings{DarkMode: darkMode, Locale: "de-DE", Currency: "EUR"}
}

func (s Settings) Theme() string {
	if s.DarkMode {
		return ThemeDark
	}
	return ThemeLight
}

// FromRequest resolves the settings for one request: ?theme= wins over the
// theme cookie, which wins over defaults. A theme given in the query is
// persisted in the cookie.
func FromRequest(w http.ResponseWriter, r *http.Request, defaults Settings) Settings {
	s := defaults

	if c, err := r.Cookie(themeCookie); err == nil {
		if dark, ok := parseTheme(c.Value); ok {
			s.DarkMode = dark
		}
	}

	if q := r.URL.Query().Get("theme"); q != "" {
		if dark, ok := parseTheme(q); ok {
			s.DarkMode = dark
			http.SetCookie(w, &http.Cookie{
				Name:     themeCookie,
				Value:    s.Theme(),
				Path:     "/",
				MaxAge:   int(cookieAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
	}
	return s
}

func parseTheme(v string) (dark bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case ThemeDark:
		return true, true
	case ThemeLight:
		return false, true
	}
	return false, false
}
