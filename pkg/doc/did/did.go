/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// Scheme is the URI scheme of every DID.
	Scheme = "did"

	separator = ":"
)

// ErrInvalidDIDString is returned when a string does not follow the DID grammar.
var ErrInvalidDIDString = errors.New("invalid DID string")

var (
	methodRegex  = regexp.MustCompile(`^[a-z0-9]+$`)
	segmentRegex = regexp.MustCompile(`^[A-Za-z0-9_.%-]+$`)
)

// DID is parsed according to the generic syntax did:<method>:<method-specific-id>.
// A DID value is immutable once constructed.
type DID struct {
	Method   string
	MethodID string
}

// New builds a DID from its method and method specific id, validating both.
func New(method, methodID string) (*DID, error) {
	return Parse(Scheme + separator + method + separator + methodID)
}

// String returns the did:<method>:<method-specific-id> form.
func (d DID) String() string {
	return Scheme + separator + d.Method + separator + d.MethodID
}

// Segments returns the ':' separated parts of the method specific id.
func (d DID) Segments() []string {
	return strings.Split(d.MethodID, separator)
}

// Equal reports whether two DIDs are the same identifier.
func (d DID) Equal(other DID) bool {
	return d.Method == other.Method && d.MethodID == other.MethodID
}

// MarshalText implements encoding.TextMarshaler.
func (d DID) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*d = *parsed

	return nil
}

// Parse parses the string according to the generic DID syntax. The method name is
// matched case-insensitively and stored lowercased.
func Parse(didStr string) (*DID, error) {
	rest, ok := cutPrefixFold(didStr, Scheme+separator)
	if !ok {
		return nil, fmt.Errorf("%w: missing '%s:' scheme in %q", ErrInvalidDIDString, Scheme, didStr)
	}

	method, methodID, found := strings.Cut(rest, separator)
	if !found {
		return nil, fmt.Errorf("%w: missing method specific id in %q", ErrInvalidDIDString, didStr)
	}

	method = strings.ToLower(method)

	if method == "" {
		return nil, fmt.Errorf("%w: empty method in %q", ErrInvalidDIDString, didStr)
	}

	if !methodRegex.MatchString(method) {
		return nil, fmt.Errorf("%w: invalid method %q", ErrInvalidDIDString, method)
	}

	if methodID == "" {
		return nil, fmt.Errorf("%w: empty method specific id in %q", ErrInvalidDIDString, didStr)
	}

	for _, segment := range strings.Split(methodID, separator) {
		if segment == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidDIDString, didStr)
		}

		if !segmentRegex.MatchString(segment) {
			return nil, fmt.Errorf("%w: invalid segment %q", ErrInvalidDIDString, segment)
		}
	}

	return &DID{Method: method, MethodID: methodID}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(didStr string) *DID {
	d, err := Parse(didStr)
	if err != nil {
		panic(err)
	}

	return d
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}

	return s[len(prefix):], true
}
