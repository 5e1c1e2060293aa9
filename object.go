package storekit

import (
	"net/url"
	"strings"
)

// Object identifies a file, folder or key prefix by URI.
// It is a pure value: construction performs no I/O, and an Object must be
// treated as read-only once built.
//
// The URI grammar is scheme://host/path. For object stores the host is the
// bucket name and the path (without its leading slash) is the object key.
// A URI without a scheme is interpreted as a local path with scheme "file".
type Object struct {
	// URI is the literal URI the object was constructed from.
	URI string

	// Scheme is the URI scheme, defaulting to "file" when absent.
	Scheme string

	// Host is the authority component: the bucket name for object stores,
	// the server for web and sftp URIs, empty for local paths.
	Host string

	// Path is the path component, always beginning with "/" when non-empty
	// for non-local schemes.
	Path string
}

// ParseObject parses a URI into an Object.
func ParseObject(uri string) (*Object, error) {
	if uri == "" {
		return nil, &PathError{Op: "parse", Path: uri, Err: ErrInvalidName}
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, &PathError{Op: "parse", Path: uri, Err: err}
	}
	obj := &Object{
		URI:    uri,
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   u.Path,
	}
	if obj.Scheme == "" {
		obj.Scheme = "file"
	}
	// url.Parse leaves opaque text in Opaque for strings like "c:data";
	// treat anything without a parsed path as a plain local path.
	if obj.Path == "" && u.Opaque != "" {
		obj.Path = uri
	}
	return obj, nil
}

// String returns the literal URI.
func (o *Object) String() string {
	return o.URI
}

// Basename returns the last path segment with trailing slashes stripped,
// so the basename of both "a/b" and "a/b/" is "b".
func (o *Object) Basename() string {
	p := strings.TrimRight(o.Path, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Key returns the object-store key for the URI: the path without its
// leading slash. It is empty for a bucket root.
func (o *Object) Key() string {
	return strings.TrimPrefix(o.Path, "/")
}

// IsBucketRoot reports whether the URI addresses the root of a bucket
// (or host), i.e. it has no key.
func (o *Object) IsBucketRoot() bool {
	return o.Host != "" && o.Key() == ""
}

// Equal reports whether two objects refer to the same literal URI.
func (o *Object) Equal(other *Object) bool {
	return other != nil && o.URI == other.URI
}

// asFolder returns a copy of o whose path (and URI) end with "/".
func (o *Object) asFolder() *Object {
	if strings.HasSuffix(o.Path, "/") {
		return o
	}
	folder := *o
	folder.Path += "/"
	folder.URI += "/"
	return &folder
}
