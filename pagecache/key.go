// Copyright 2026 The Labsync Authors
// SPDX-License-Identifier: Apache-2.0

package pagecache

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Key identifies one cached partition: a resource name plus its
// normalized partition parameters. Two keys are equal iff the
// resource and all parameters are equal; the order in which
// parameters were added never matters, and a parameter set to the
// empty string is the same as an absent parameter.
type Key string

// Params holds the partition parameters of a key: fiscal year, page
// number, page size, free-text filter, lab id, and so on. Values are
// strings; use [Params.SetInt] for numeric parameters.
type Params map[string]string

// SetInt sets a numeric parameter. Zero is stored as "0", not
// dropped — page 0 and "no page parameter" are different partitions.
func (p Params) SetInt(name string, value int) {
	p[name] = strconv.Itoa(value)
}

// NewKey builds the normalized key for a resource and its partition
// parameters. Parameters are sorted by name and URL-escaped, so the
// same logical partition always yields byte-identical keys.
func NewKey(resource string, params Params) Key {
	if len(params) == 0 {
		return Key(resource)
	}

	names := make([]string, 0, len(params))
	for name, value := range params {
		if value == "" {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return Key(resource)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(resource)
	b.WriteByte('?')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[name]))
	}
	return Key(b.String())
}

// Resource returns the resource-name portion of the key.
func (k Key) Resource() string {
	if i := strings.IndexByte(string(k), '?'); i >= 0 {
		return string(k)[:i]
	}
	return string(k)
}

// Query returns the key's parameters as url.Values, for handing to
// the network layer when the partition is fetched or revalidated.
func (k Key) Query() url.Values {
	i := strings.IndexByte(string(k), '?')
	if i < 0 {
		return url.Values{}
	}
	values, err := url.ParseQuery(string(k)[i+1:])
	if err != nil {
		// Keys are built by NewKey with escaped components; a key
		// that fails to parse was hand-forged.
		return url.Values{}
	}
	return values
}

func (k Key) String() string { return string(k) }
