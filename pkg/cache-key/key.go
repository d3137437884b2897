package cachekey

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 30
)

const (
	usersPrefix = "/users/"
	gistsSuffix = "/gists"
)

// Key identifies a cacheable gist listing request.
// It is comparable and can be used as a map key directly.
type Key struct {
	Username string
	Page     int
	PerPage  int
}

// New returns the key for the given username and pagination values.
func New(username string, page, perPage int) Key {
	return Key{Username: username, Page: page, PerPage: perPage}
}

// RequestURI returns the upstream request URI for the key,
// e.g. /users/octocat/gists?page=1&per_page=30.
// It doubles as the canonical string form of the key.
func (k Key) RequestURI() string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(k.Page))
	q.Set("per_page", strconv.Itoa(k.PerPage))
	return usersPrefix + url.PathEscape(k.Username) + gistsSuffix + "?" + q.Encode()
}

func (k Key) String() string {
	return k.RequestURI()
}

// Parse reverses RequestURI.
// It returns an error if the string was not produced by a Key.
func Parse(s string) (Key, error) {
	path, query, found := strings.Cut(s, "?")
	if !found {
		return Key{}, fmt.Errorf("Malformed key: %s", s)
	}
	if !strings.HasPrefix(path, usersPrefix) || !strings.HasSuffix(path, gistsSuffix) {
		return Key{}, fmt.Errorf("Malformed key: %s", s)
	}
	escaped := strings.TrimSuffix(strings.TrimPrefix(path, usersPrefix), gistsSuffix)
	username, err := url.PathUnescape(escaped)
	if err != nil {
		return Key{}, fmt.Errorf("Malformed username in key %s: %w", s, err)
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		return Key{}, fmt.Errorf("Malformed query in key %s: %w", s, err)
	}
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		return Key{}, fmt.Errorf("Malformed page in key %s: %w", s, err)
	}
	perPage, err := strconv.Atoi(q.Get("per_page"))
	if err != nil {
		return Key{}, fmt.Errorf("Malformed per_page in key %s: %w", s, err)
	}
	return New(username, page, perPage), nil
}

// IntParam parses a pagination query value.
// Missing or non-integer values yield the fallback, anything else is passed through unchecked.
func IntParam(q url.Values, name string, fallback int) int {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// FromQuery builds the key for a username and the pagination values in q.
func FromQuery(username string, q url.Values) Key {
	return New(username,
		IntParam(q, "page", DefaultPage),
		IntParam(q, "per_page", DefaultPerPage))
}
