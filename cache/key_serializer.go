package cache

import "strings"

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// KeySerializer builds a response cache key from a route name and the
// request parameters that change the rendered document.
type KeySerializer interface {
	SerializeKey(route string, params ...string) string
}

type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

// SerializeKey joins the route and its params with KeySeparator.
func (defaultKeySerializer) SerializeKey(route string, params ...string) string {
	if len(params) == 0 {
		return route
	}
	return route + KeySeparator + strings.Join(params, KeySeparator)
}
