// Package resource describes how playable media is obtained.
package resource

import "fmt"

// Kind identifies the resource variant.
type Kind int

const (
	KindLoading Kind = iota
	KindFailed
	KindSimple
	KindCustom
	KindEncrypted
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "Loading"
	case KindFailed:
		return "Failed"
	case KindSimple:
		return "Simple"
	case KindCustom:
		return "Custom"
	case KindEncrypted:
		return "Encrypted"
	default:
		return "Unknown"
	}
}

// LoaderDelegate serves token-protected media requests for a Custom resource.
// Delegates are compared by identity, so implementations should be pointers.
type LoaderDelegate interface {
	AuthorizeURL(url string) (string, error)
}

// KeyDelegate acquires content keys for an Encrypted resource.
// Delegates are compared by identity, so implementations should be pointers.
type KeyDelegate interface {
	ContentKey(url string) ([]byte, error)
}

// Resource is a tagged variant. The zero value is a Loading placeholder.
type Resource struct {
	kind    Kind
	url     string
	loader  LoaderDelegate
	keys    KeyDelegate
	err     error
	pending *pendingToken
}

// pendingToken gives each Loading placeholder its own identity.
type pendingToken struct{ _ byte }

// Simple returns a plain URL resource.
func Simple(url string) Resource {
	return Resource{kind: KindSimple, url: url}
}

// Custom returns a URL resource whose requests go through a loader delegate.
func Custom(url string, loader LoaderDelegate) Resource {
	return Resource{kind: KindCustom, url: url, loader: loader}
}

// Encrypted returns a DRM-protected URL resource.
func Encrypted(url string, keys KeyDelegate) Resource {
	return Resource{kind: KindEncrypted, url: url, keys: keys}
}

// Loading returns the placeholder used while a resource is being resolved.
// Every call yields a distinct placeholder: a reload never equals the
// placeholder it replaces.
func Loading() Resource {
	return Resource{kind: KindLoading, pending: &pendingToken{}}
}

// Failed returns the placeholder for a resource that could not be resolved.
func Failed(err error) Resource {
	return Resource{kind: KindFailed, err: err}
}

func (r Resource) Kind() Kind { return r.kind }

func (r Resource) URL() string { return r.url }

func (r Resource) Loader() LoaderDelegate { return r.loader }

func (r Resource) Keys() KeyDelegate { return r.keys }

// Err returns the failure for a Failed resource, nil otherwise.
func (r Resource) Err() error { return r.err }

// IsPlayable reports whether the resource points at real media.
func (r Resource) IsPlayable() bool {
	return r.kind == KindSimple || r.kind == KindCustom || r.kind == KindEncrypted
}

// Equal reports whether both resources are the same variant with the same
// payload. Delegates, errors and Loading placeholders compare by identity.
func (r Resource) Equal(o Resource) bool {
	if r.kind != o.kind {
		return false
	}
	switch r.kind {
	case KindLoading:
		return r.pending == o.pending
	case KindFailed:
		return r.err == o.err
	case KindSimple:
		return r.url == o.url
	case KindCustom:
		return r.url == o.url && r.loader == o.loader
	case KindEncrypted:
		return r.url == o.url && r.keys == o.keys
	default:
		return false
	}
}

// Equal is a convenience for a.Equal(b).
func Equal(a, b Resource) bool {
	return a.Equal(b)
}

func (r Resource) String() string {
	switch r.kind {
	case KindFailed:
		return fmt.Sprintf("Failed(%v)", r.err)
	case KindLoading:
		return "Loading"
	default:
		return fmt.Sprintf("%s(%s)", r.kind, r.url)
	}
}
