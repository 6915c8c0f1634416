// Package naming turns user supplied file names into storage keys and recovers
// keys from public object URLs at delete time.
package naming

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Strategy selects how the uniqueness token in front of a key is built.
type Strategy string

const (
	// StrategyTimestamp prefixes seconds since epoch. Two uploads of the same
	// name within one second map to the same key.
	StrategyTimestamp Strategy = "timestamp"
	// StrategyUnique adds a random suffix to the timestamp prefix.
	StrategyUnique Strategy = "unique"
)

const placeholder = "_"

var disallowedKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Resolver derives storage keys. The zero value uses StrategyTimestamp and the wall clock.
type Resolver struct {
	Strategy Strategy
	Now      func() time.Time
	Random   func() string
}

// NewResolver returns a Resolver for the named strategy.
func NewResolver(strategy string) *Resolver {
	return &Resolver{Strategy: Strategy(strategy)}
}

// Resolve derives the storage key for originalName.
func (r *Resolver) Resolve(originalName string) string {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	token := strconv.FormatInt(now().Unix(), 10)
	if r.Strategy == StrategyUnique {
		random := r.Random
		if random == nil {
			random = shortRandom
		}
		token = fmt.Sprintf("%s-%s", token, random())
	}
	return token + "_" + Sanitize(originalName)
}

// DisplayName strips directory components from an uploaded name.
func DisplayName(originalName string) string {
	name := originalName
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Sanitize keeps the final path component and replaces every character
// outside [A-Za-z0-9._-] with an underscore.
func Sanitize(originalName string) string {
	return disallowedKeyChars.ReplaceAllString(DisplayName(originalName), placeholder)
}

// KeyFromPublicURL recovers a storage key from a public object URL by taking
// the final path segment. Keys that contained "/" cannot be recovered.
func KeyFromPublicURL(publicURL string) (string, error) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", fmt.Errorf("parse public url: %w", err)
	}
	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		return "", fmt.Errorf("public url %q has no path", publicURL)
	}
	return path.Base(p), nil
}

func shortRandom() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
