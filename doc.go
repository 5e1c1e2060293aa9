// Package storekit provides unified file and folder I/O over local disk,
// cloud object stores and read-only network sources, addressed by URI.
//
// A [Service] resolves URIs to handles through a scheme registry:
//
//   - Local filesystem, "file://" or a bare path (github.com/gobeaver/storekit/driver/local)
//   - Google Cloud Storage, "gs://" (github.com/gobeaver/storekit/driver/gs)
//   - Amazon S3, "s3://" (github.com/gobeaver/storekit/driver/s3)
//   - HTTP, HTTPS and FTP, read-only (github.com/gobeaver/storekit/driver/web)
//   - SFTP, "sftp://" (github.com/gobeaver/storekit/driver/sftp)
//   - In-memory, "mem://" (github.com/gobeaver/storekit/driver/mem)
//
// Import the driver packages you need for their side-effect registration,
// the way database/sql drivers register themselves.
//
// # Basic Usage
//
//	import (
//	    "github.com/gobeaver/storekit"
//
//	    _ "github.com/gobeaver/storekit/driver/gs"
//	    _ "github.com/gobeaver/storekit/driver/local"
//	)
//
//	svc := storekit.New(nil)
//	ctx := context.Background()
//
//	f, err := svc.File("gs://bucket/path/data.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := f.Open(ctx, "w"); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Fprintln(f, "hello")
//	if err := f.Close(); err != nil {
//	    log.Fatal(err)
//	}
//
// Every handle exposes the same operations regardless of backend. Modes
// follow the fopen convention ("r", "wb", "a+", ...); text mode decodes
// and encodes through a configurable character encoding, binary mode
// passes bytes through untouched.
//
// # Folders
//
//	folder, err := svc.Folder("gs://bucket/results/")
//	files, err := folder.Files(ctx)
//	err = folder.CopyTo(ctx, "s3://other/results-copy")
//
// Folder copies follow the trailing-slash convention: a "/"-terminated
// destination nests the source folder inside it, anything else renames.
//
// # Errors
//
// Failures wrap the sentinel errors ([ErrNotExist], [ErrExist],
// [ErrNotSupported], ...) in a [PathError] carrying the operation and
// URI; test them with errors.Is or the Is helpers.
package storekit
