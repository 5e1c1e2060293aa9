package storekit

import (
	"context"
	"io"
)

// DefaultChunkSize is the chunk size used by LoadFrom when copying an
// arbitrary source stream into an object.
const DefaultChunkSize = 1 << 20

// RawFile is the unbuffered, backend-specific byte-level stream contract.
// Every scheme provides one implementation.
//
// A RawFile starts closed. Open transitions it into an open state with a
// validated mode; Read and Write fail with ErrNotSupported when the mode
// does not permit them. High-level operations (Exists, Size, Delete,
// LoadFrom) work on a closed file.
type RawFile interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer

	// Open opens the stream in the given mode. Opening an already open
	// file closes it first. Blocking calls made by the stream afterwards
	// use ctx.
	Open(ctx context.Context, mode Mode) error

	// Exists reports whether the object exists.
	Exists(ctx context.Context) (bool, error)

	// Size returns the object size in bytes.
	Size(ctx context.Context) (int64, error)

	// Delete removes the object. Deleting a missing object returns
	// ErrNotExist.
	Delete(ctx context.Context) error

	// LoadFrom replaces the object content with the source stream,
	// copying in bounded-size chunks so arbitrarily large sources never
	// materialize in memory. The file must not be open.
	LoadFrom(ctx context.Context, r io.Reader) (int64, error)
}

// RawPrefix is the backend contract for a set of objects sharing a key
// prefix. Listing methods return URIs.
type RawPrefix interface {
	// Exists reports whether any object exists under the prefix.
	Exists(ctx context.Context) (bool, error)

	// Objects returns the URIs of every object under the prefix,
	// including objects in nested folders.
	Objects(ctx context.Context) ([]string, error)

	// Files returns the URIs of objects directly under the prefix,
	// excluding anything in nested folders.
	Files(ctx context.Context) ([]string, error)

	// Folders returns the URIs of the folders directly under the prefix.
	Folders(ctx context.Context) ([]string, error)

	// DeleteAll removes every object under the prefix and returns the
	// number of objects removed.
	DeleteAll(ctx context.Context) (int, error)

	// Create materializes the prefix as a folder. Creating an existing
	// folder is not an error.
	Create(ctx context.Context) error
}

// Driver creates raw backends for the scheme(s) it is registered under.
type Driver interface {
	OpenFile(obj *Object) (RawFile, error)
	OpenPrefix(obj *Object) (RawPrefix, error)
}

// CanCopyFile is implemented by raw files whose backend offers a
// server-side copy to a destination of the same scheme.
type CanCopyFile interface {
	CopyTo(ctx context.Context, dest *Object) error
}

// CanCopyPrefix is implemented by raw prefixes whose backend offers a
// server-side bulk copy to a destination of the same scheme. It returns
// the number of objects copied.
type CanCopyPrefix interface {
	CopyAll(ctx context.Context, dest *Object) (int, error)
}

// CanBlockSize is implemented by raw files that know the natural block
// size of their backing store.
type CanBlockSize interface {
	BlockSize() int
}

// CanMD5 is implemented by raw files whose backend records a content MD5.
type CanMD5 interface {
	MD5Hex(ctx context.Context) (string, error)
}

// CopyChunks copies src to dst in chunks of the given size (DefaultChunkSize
// when chunk <= 0), checking ctx between chunks. It returns the number of
// bytes copied.
func CopyChunks(ctx context.Context, dst io.Writer, src io.Reader, chunk int) (int64, error) {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	buf := make([]byte, chunk)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
			if w < n {
				return written, io.ErrShortWrite
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
