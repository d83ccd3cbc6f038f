package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/kkonovalov/webagent-core/internal/browser"
)

// jsonCookie mirrors the object shape set_cookies accepts, either bare or
// inside a JSON array (spec.md §4.3 set_cookies / §8 scenario 6).
type jsonCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

func (e *Executor) getCookies(ctx context.Context, filter string) (string, error) {
	cookies, err := e.ctrl.Cookies(ctx)
	if err != nil {
		return "", fmt.Errorf("get_cookies: %w", err)
	}
	filter = strings.TrimSpace(filter)
	matched := make([]browser.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if filter == "" {
			matched = append(matched, c)
			continue
		}
		if ok, _ := filepath.Match(filter, c.Name); ok {
			matched = append(matched, c)
		}
	}
	buf, err := json.Marshal(matched)
	if err != nil {
		return "", fmt.Errorf("get_cookies: encode result: %w", err)
	}
	return string(buf), nil
}

func (e *Executor) setCookies(ctx context.Context, value string) (string, error) {
	parsed, err := parseCookieValue(value, e.ctrl.CurrentURL())
	if err != nil {
		return "", err
	}
	if err := e.ctrl.AddCookies(ctx, parsed); err != nil {
		return "", fmt.Errorf("set_cookies: %w", err)
	}
	return fmt.Sprintf("set %d cookie(s)", len(parsed)), nil
}

// parseCookieValue accepts JSON (a single object or an array of objects)
// or a semicolon-delimited "name=value; name2=value2" list (spec.md §4.3).
func parseCookieValue(value, currentURL string) ([]browser.Cookie, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("set_cookies: empty value")
	}

	defaultDomain := ""
	if u, err := url.Parse(currentURL); err == nil {
		defaultDomain = u.Hostname()
	}

	if strings.HasPrefix(value, "[") || strings.HasPrefix(value, "{") {
		var single jsonCookie
		var many []jsonCookie
		if strings.HasPrefix(value, "[") {
			if err := json.Unmarshal([]byte(value), &many); err != nil {
				return nil, fmt.Errorf("set_cookies: invalid JSON array: %w", err)
			}
		} else {
			if err := json.Unmarshal([]byte(value), &single); err != nil {
				return nil, fmt.Errorf("set_cookies: invalid JSON object: %w", err)
			}
			many = []jsonCookie{single}
		}
		out := make([]browser.Cookie, 0, len(many))
		for _, jc := range many {
			domain := jc.Domain
			if domain == "" {
				domain = defaultDomain
			}
			path := jc.Path
			if path == "" {
				path = "/"
			}
			out = append(out, browser.Cookie{
				Name: jc.Name, Value: jc.Value, Domain: domain, Path: path,
				Expires: jc.Expires, HTTPOnly: jc.HTTPOnly, Secure: jc.Secure,
			})
		}
		return out, nil
	}

	pairs := strings.Split(value, ";")
	out := make([]browser.Cookie, 0, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out = append(out, browser.Cookie{
			Name: strings.TrimSpace(kv[0]), Value: strings.TrimSpace(kv[1]),
			Domain: defaultDomain, Path: "/",
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("set_cookies: no cookies parsed from value")
	}
	return out, nil
}
