package cache

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxSeconds is the largest whole number of seconds a time.Duration holds.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// Seconds converts n seconds to a duration, clamped to the representable range.
func Seconds(n int64) time.Duration {
	switch {
	case n > maxSeconds:
		n = maxSeconds
	case n < -maxSeconds:
		n = -maxSeconds
	}
	return time.Duration(n) * time.Second
}

// ExpiresAt computes when a cached response stops being fresh.
//
// An explicit duration always wins when non-nil, zero included. Otherwise the
// max-age directive of cacheControl is used. With neither, the returned time
// equals now, so the entry is already stale.
//
// Both sources are measured from now, the moment of the lookup.
// No other Cache-Control directive (no-store, no-cache, ...) is honoured.
func ExpiresAt(explicit *time.Duration, cacheControl string, now time.Time) time.Time {
	if explicit != nil {
		return now.Add(*explicit)
	}

	if maxAge, ok := ParseMaxAge(cacheControl); ok {
		return now.Add(maxAge)
	}

	return now
}

// IsFresh reports whether expiresAt is still in the future.
func IsFresh(expiresAt, now time.Time) bool {
	return expiresAt.After(now)
}

// ParseMaxAge extracts the max-age directive from a Cache-Control value.
// The directive name matches ASCII case-insensitively and the value runs up to
// the next ',' or ';' or whitespace. Returns false when the directive is
// absent, not an integer, or negative. Values too large for a time.Duration
// are clamped.
func ParseMaxAge(cacheControl string) (time.Duration, bool) {
	const directive = "max-age="

	idx := indexFoldASCII(cacheControl, directive)
	if idx < 0 {
		return 0, false
	}

	value := cacheControl[idx+len(directive):]
	if end := strings.IndexAny(value, ",; \t"); end >= 0 {
		value = value[:end]
	}
	value = strings.Trim(value, `"`)

	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		if !errors.Is(err, strconv.ErrRange) || strings.HasPrefix(value, "-") {
			return 0, false
		}
		seconds = math.MaxInt64
	}
	if seconds < 0 {
		return 0, false
	}

	return Seconds(seconds), true
}

// indexFoldASCII returns the byte offset of the first match of the lower-case
// ASCII pattern in s, comparing letters case-insensitively. Bytes outside
// ASCII never match a pattern letter, so offsets always refer to s itself.
func indexFoldASCII(s, pattern string) int {
	for i := 0; i+len(pattern) <= len(s); i++ {
		match := true
		for j := 0; j < len(pattern); j++ {
			c := s[i+j]
			if 'A' <= c && c <= 'Z' {
				c += 'a' - 'A'
			}
			if c != pattern[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
