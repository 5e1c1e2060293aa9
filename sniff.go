package storekit

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

var gzipMagic = []byte{0x1f, 0x8b}

// IsGzip reports whether the object content starts with the gzip magic
// bytes. The file must not be open; only the first two bytes are read.
func (f *File) IsGzip(ctx context.Context) (bool, error) {
	if f.open {
		return false, NewPathError("sniff", f.obj.URI, ErrNotSupported)
	}
	if err := f.raw.Open(ctx, Mode{Read: true, Binary: true}); err != nil {
		return false, NewPathError("sniff", f.obj.URI, err)
	}
	defer f.raw.Close()

	head := make([]byte, len(gzipMagic))
	if _, err := io.ReadFull(f.raw, head); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, NewPathError("sniff", f.obj.URI, err)
	}
	return head[0] == gzipMagic[0] && head[1] == gzipMagic[1], nil
}

// GuessContentType determines a content type from the file name, falling
// back to sniffing the given data when the extension is unknown.
func GuessContentType(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "application/octet-stream"
}
