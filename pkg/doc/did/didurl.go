/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDIDURLString is returned when a DID URL cannot be parsed.
var ErrInvalidDIDURLString = errors.New("invalid DID URL string")

// QueryParams is an insertion ordered set of DID URL query parameters with unique keys.
type QueryParams struct {
	keys   []string
	values map[string]string
}

// Set adds a parameter. An existing key keeps its position and gets the new value.
func (q *QueryParams) Set(key, value string) {
	if q.values == nil {
		q.values = make(map[string]string)
	}

	if _, ok := q.values[key]; !ok {
		q.keys = append(q.keys, key)
	}

	q.values[key] = value
}

// Get returns the value of key.
func (q QueryParams) Get(key string) (string, bool) {
	v, ok := q.values[key]

	return v, ok
}

// Keys returns the parameter names in insertion order.
func (q QueryParams) Keys() []string {
	return append([]string(nil), q.keys...)
}

// Len returns the number of parameters.
func (q QueryParams) Len() int {
	return len(q.keys)
}

func (q QueryParams) String() string {
	pairs := make([]string, 0, len(q.keys))

	for _, k := range q.keys {
		pairs = append(pairs, k+"="+q.values[k])
	}

	return strings.Join(pairs, "&")
}

// DIDURL is a DID with optional path segments, query and fragment.
type DIDURL struct {
	DID      DID
	Path     []string
	Query    QueryParams
	Fragment string
}

func (u DIDURL) copy() DIDURL {
	out := DIDURL{DID: u.DID, Path: copyStrings(u.Path), Fragment: u.Fragment}

	for _, k := range u.Query.keys {
		out.Query.Set(k, u.Query.values[k])
	}

	return out
}

// NewDIDURL returns a DID URL pointing at fragment inside the document of d.
func NewDIDURL(d DID, fragment string) DIDURL {
	return DIDURL{DID: d, Fragment: fragment}
}

// ParseDIDURL splits off /path, ?query and #fragment, in that order, and parses the DID.
func ParseDIDURL(didURL string) (*DIDURL, error) {
	rest := didURL
	u := &DIDURL{}

	if i := strings.IndexByte(rest, '#'); i >= 0 {
		u.Fragment = rest[i+1:]
		rest = rest[:i]

		if u.Fragment == "" {
			return nil, fmt.Errorf("%w: empty fragment in %q", ErrInvalidDIDURLString, didURL)
		}
	}

	if i := strings.IndexByte(rest, '?'); i >= 0 {
		if err := parseQuery(rest[i+1:], &u.Query); err != nil {
			return nil, fmt.Errorf("%w: %s in %q", ErrInvalidDIDURLString, err.Error(), didURL)
		}

		rest = rest[:i]
	}

	if i := strings.IndexByte(rest, '/'); i >= 0 {
		for _, seg := range strings.Split(rest[i+1:], "/") {
			if seg != "" {
				u.Path = append(u.Path, seg)
			}
		}

		rest = rest[:i]
	}

	d, err := Parse(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDIDURLString, err)
	}

	u.DID = *d

	return u, nil
}

// String returns the DID URL in its canonical form.
func (u DIDURL) String() string {
	var sb strings.Builder

	sb.WriteString(u.DID.String())

	if len(u.Path) > 0 {
		sb.WriteString("/")
		sb.WriteString(strings.Join(u.Path, "/"))
	}

	if u.Query.Len() > 0 {
		sb.WriteString("?")
		sb.WriteString(u.Query.String())
	}

	if u.Fragment != "" {
		sb.WriteString("#")
		sb.WriteString(u.Fragment)
	}

	return sb.String()
}

// RelativeFragment returns "#fragment", the form used by relative references inside a document.
func (u DIDURL) RelativeFragment() string {
	return "#" + u.Fragment
}

// MarshalText implements encoding.TextMarshaler.
func (u DIDURL) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *DIDURL) UnmarshalText(text []byte) error {
	parsed, err := ParseDIDURL(string(text))
	if err != nil {
		return err
	}

	*u = *parsed

	return nil
}

// parseQuery fills params from k=v pairs separated by '&'. Duplicate keys overwrite.
func parseQuery(raw string, params *QueryParams) error {
	if raw == "" {
		return nil
	}

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}

		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return fmt.Errorf("malformed query parameter %q", pair)
		}

		params.Set(key, value)
	}

	return nil
}
