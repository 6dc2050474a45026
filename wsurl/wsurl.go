// Package wsurl derives WebSocket endpoints from the location a page was served from.
//
//	Resolve(loc, "")                     -> ws://host
//	Resolve(loc, "/debug-session/")      -> ws://host/debug-session/
//	Resolve(loc, "http://h:9609/m/")     -> http://h:9609/m/   (passed through)
//
// wss:// is used whenever the page itself was served securely.
package wsurl

import (
	"net/http"
	"net/url"
	"strings"
)

// Location is the scheme/host a page was loaded from.
type Location struct {
	Secure bool
	Host   string // host[:port]
}

// Base returns the scheme+host WebSocket URL for loc.
func Base(loc Location) string {
	scheme := "ws"
	if loc.Secure {
		scheme = "wss"
	}
	return scheme + "://" + loc.Host
}

// Resolve maps path onto loc. The empty string stands for an absent path and
// yields Base(loc), so an empty URL can never be returned; a path with a
// leading '/' is appended to Base(loc); anything else is returned unchanged.
func Resolve(loc Location, path string) string {
	switch {
	case path == "":
		return Base(loc)
	case path[0] == '/':
		return Base(loc) + path
	default:
		return path
	}
}

// FromURL derives a Location from a page URL. https and wss count as secure.
func FromURL(u *url.URL) Location {
	if u == nil {
		return Location{}
	}
	s := strings.ToLower(u.Scheme)
	return Location{Secure: s == "https" || s == "wss", Host: u.Host}
}

// FromRequest derives the Location the client used to reach r, honoring
// X-Forwarded-Proto and X-Forwarded-Host set by a fronting proxy.
func FromRequest(r *http.Request) Location {
	loc := Location{Secure: r.TLS != nil, Host: r.Host}
	if p := firstValue(r.Header.Get("X-Forwarded-Proto")); p != "" {
		loc.Secure = strings.EqualFold(p, "https") || strings.EqualFold(p, "wss")
	}
	if h := firstValue(r.Header.Get("X-Forwarded-Host")); h != "" {
		loc.Host = h
	}
	return loc
}

// firstValue returns the first element of a comma-separated proxy header.
func firstValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
