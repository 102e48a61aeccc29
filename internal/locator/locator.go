// Package locator resolves stored asset references into fetchable URLs.
//
// References arrive as bare strings in several historical shapes. They
// are parsed once into a tagged Ref so the playout path never re-guesses
// what a string means.
package locator

import (
	"errors"
	"regexp"
	"strings"
)

// ErrUnresolvable is returned when a reference is empty after trimming.
// Every non-empty reference resolves to some URL, even a wrong one.
var ErrUnresolvable = errors.New("asset reference is unresolvable")

// Kind tags the shape a reference was parsed as.
type Kind int

// Reference kinds, in resolution precedence order.
const (
	// KindAbsolute is a full http(s) URL, returned unchanged.
	KindAbsolute Kind = iota
	// KindSiteAbsolute is a site-absolute path, returned unchanged.
	KindSiteAbsolute
	// KindExplicitStore names its store explicitly: "store:key" or
	// "scheme://store/key".
	KindExplicitStore
	// KindImplicitStore has a bare store name as its first path segment.
	KindImplicitStore
	// KindNamespaceRelative is a key under the channel's own namespace.
	KindNamespaceRelative
)

// Ref is a parsed asset reference.
type Ref struct {
	Kind  Kind
	Raw   string
	Store string
	Key   string
}

// storeNamePattern matches bucket-style store names: lowercase
// alphanumerics, dots and hyphens, 3-63 characters.
var storeNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// ParseRef classifies a raw reference string. It fails only when the
// reference is empty after trimming.
func ParseRef(raw string) (Ref, error) {
	ref := strings.TrimSpace(raw)
	if ref == "" {
		return Ref{}, ErrUnresolvable
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return Ref{Kind: KindAbsolute, Raw: ref}, nil
	}

	if strings.HasPrefix(ref, "/") {
		return Ref{Kind: KindSiteAbsolute, Raw: ref}, nil
	}

	// scheme://store/key form of an explicit store override
	if idx := strings.Index(ref, "://"); idx > 0 {
		rest := ref[idx+3:]
		if store, key, ok := strings.Cut(rest, "/"); ok && key != "" && storeNamePattern.MatchString(store) {
			return Ref{Kind: KindExplicitStore, Raw: ref, Store: store, Key: key}, nil
		}
	} else if store, key, ok := strings.Cut(ref, ":"); ok && key != "" && !strings.HasPrefix(key, "/") && storeNamePattern.MatchString(store) {
		// store:key form
		return Ref{Kind: KindExplicitStore, Raw: ref, Store: store, Key: key}, nil
	}

	// First path segment that looks like a store name wins over a
	// namespace-relative read. Ambiguous by construction; accepted.
	if store, key, ok := strings.Cut(ref, "/"); ok && key != "" && storeNamePattern.MatchString(store) {
		return Ref{Kind: KindImplicitStore, Raw: ref, Store: store, Key: key}, nil
	}

	return Ref{Kind: KindNamespaceRelative, Raw: ref, Key: ref}, nil
}

// Locator turns parsed references into URLs. publicURL builds the final
// URL for a store/key pair and is expected to percent-encode segments.
type Locator struct {
	publicURL func(store, key string) string
}

// New creates a locator backed by the given URL builder.
func New(publicURL func(store, key string) string) *Locator {
	return &Locator{publicURL: publicURL}
}

// Resolve parses raw and returns its URL within the given namespace.
func (l *Locator) Resolve(raw, namespace string) (string, error) {
	ref, err := ParseRef(raw)
	if err != nil {
		return "", err
	}
	return l.URL(ref, namespace), nil
}

// URL builds the final URL for an already-parsed reference.
func (l *Locator) URL(ref Ref, namespace string) string {
	switch ref.Kind {
	case KindAbsolute, KindSiteAbsolute:
		return ref.Raw
	case KindExplicitStore, KindImplicitStore:
		return l.publicURL(ref.Store, ref.Key)
	default:
		key := ref.Key
		// Some entries were saved with the namespace already baked in;
		// strip it once so the final URL doesn't double it.
		if strings.HasPrefix(key, namespace+"/") {
			key = key[len(namespace)+1:]
		}
		return l.publicURL(namespace, key)
	}
}
