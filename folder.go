package storekit

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
)

// Prefix is the set of objects sharing a key prefix. Unlike Folder it
// carries no trailing-slash normalization, so "gs://b/ab" matches
// "gs://b/abc" as well as "gs://b/ab/c".
type Prefix struct {
	obj *Object
	svc *Service
	raw RawPrefix
}

// Object returns the parsed URI value for the prefix.
func (p *Prefix) Object() *Object { return p.obj }

// String returns the literal URI.
func (p *Prefix) String() string { return p.obj.URI }

// Exists reports whether any object exists under the prefix.
func (p *Prefix) Exists(ctx context.Context) (bool, error) {
	return p.raw.Exists(ctx)
}

// Objects returns the URIs of every object under the prefix, including
// objects in nested folders.
func (p *Prefix) Objects(ctx context.Context) ([]string, error) {
	return p.raw.Objects(ctx)
}

// Delete removes every object under the prefix and returns the number of
// objects removed. Deleting an empty prefix is not an error.
func (p *Prefix) Delete(ctx context.Context) (int, error) {
	return p.raw.DeleteAll(ctx)
}

// Files resolves every object under the prefix to a File handle.
func (p *Prefix) Files(ctx context.Context) ([]*File, error) {
	uris, err := p.raw.Objects(ctx)
	if err != nil {
		return nil, err
	}
	return p.svc.files(uris)
}

// CopyTo copies every object under the prefix to another URI, replacing
// the prefix in each key: copying "gs://b/ab" to "gs://b/cd" turns
// "gs://b/abc" into "gs://b/cdc".
func (p *Prefix) CopyTo(ctx context.Context, to string) error {
	if _, err := ParseObject(to); err != nil {
		return err
	}
	uris, err := p.raw.Objects(ctx)
	if err != nil {
		return err
	}
	for _, uri := range uris {
		rel := strings.TrimPrefix(uri, p.obj.URI)
		src, err := p.svc.File(uri)
		if err != nil {
			return err
		}
		if err := src.CopyTo(ctx, to+rel); err != nil {
			return err
		}
	}
	return nil
}

// Folder is a Prefix whose path ends with "/". It adds the directory-like
// operations: shallow listing, create, empty and recursive copy with
// rename-or-nest destination semantics.
type Folder struct {
	Prefix
}

// Name returns the last path segment of the folder.
func (f *Folder) Name() string { return f.obj.Basename() }

// Create materializes the folder. Creating an existing folder is not an
// error. Object stores have no real directories, so this writes a
// zero-byte placeholder where the backend needs one.
func (f *Folder) Create(ctx context.Context) error {
	return f.raw.Create(ctx)
}

// FilePaths returns the URIs of the files directly inside the folder.
func (f *Folder) FilePaths(ctx context.Context) ([]string, error) {
	return f.raw.Files(ctx)
}

// FolderPaths returns the URIs of the folders directly inside the folder.
func (f *Folder) FolderPaths(ctx context.Context) ([]string, error) {
	return f.raw.Folders(ctx)
}

// FileNames returns the base names of the files directly inside the
// folder.
func (f *Folder) FileNames(ctx context.Context) ([]string, error) {
	uris, err := f.raw.Files(ctx)
	if err != nil {
		return nil, err
	}
	return basenames(uris), nil
}

// FolderNames returns the names of the folders directly inside the
// folder.
func (f *Folder) FolderNames(ctx context.Context) ([]string, error) {
	uris, err := f.raw.Folders(ctx)
	if err != nil {
		return nil, err
	}
	return basenames(uris), nil
}

// Files resolves the files directly inside the folder to File handles.
func (f *Folder) Files(ctx context.Context) ([]*File, error) {
	uris, err := f.raw.Files(ctx)
	if err != nil {
		return nil, err
	}
	return f.svc.files(uris)
}

// Folders resolves the folders directly inside the folder to Folder
// handles.
func (f *Folder) Folders(ctx context.Context) ([]*Folder, error) {
	uris, err := f.raw.Folders(ctx)
	if err != nil {
		return nil, err
	}
	folders := make([]*Folder, 0, len(uris))
	for _, uri := range uris {
		sub, err := f.svc.Folder(uri)
		if err != nil {
			return nil, err
		}
		folders = append(folders, sub)
	}
	return folders, nil
}

// Filter returns the files directly inside the folder whose names start
// with the given prefix.
func (f *Folder) Filter(ctx context.Context, namePrefix string) ([]*File, error) {
	uris, err := f.raw.Files(ctx)
	if err != nil {
		return nil, err
	}
	matched := uris[:0]
	for _, uri := range uris {
		obj, err := ParseObject(uri)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(obj.Basename(), namePrefix) {
			matched = append(matched, uri)
		}
	}
	return f.svc.files(matched)
}

// IsEmpty reports whether the folder contains no objects.
func (f *Folder) IsEmpty(ctx context.Context) (bool, error) {
	uris, err := f.raw.Objects(ctx)
	if err != nil {
		return false, err
	}
	return len(uris) == 0, nil
}

// Empty removes everything inside the folder but keeps the folder itself.
func (f *Folder) Empty(ctx context.Context) (int, error) {
	n, err := f.raw.DeleteAll(ctx)
	if err != nil {
		return n, err
	}
	return n, f.raw.Create(ctx)
}

// CopyTo copies the folder to another URI, which may use any registered
// scheme. The destination follows the trailing-slash convention:
//
//	folder.CopyTo(ctx, "gs://b/target/") // nest: gs://b/target/<name>/
//	folder.CopyTo(ctx, "gs://b/renamed") // rename: gs://b/renamed/
//
// The root of a bucket has no name, so copying it into a "/"-terminated
// destination copies its contents directly. Same-scheme copies use the
// backend's server-side bulk copy when it offers one.
func (f *Folder) CopyTo(ctx context.Context, to string) error {
	destURI, err := f.resolveDest(to)
	if err != nil {
		return err
	}
	dest, err := ParseObject(destURI)
	if err != nil {
		return err
	}
	if dest.Scheme == f.obj.Scheme {
		if c, ok := f.raw.(CanCopyPrefix); ok {
			_, err := c.CopyAll(ctx, dest)
			if err == nil {
				return nil
			}
			if !IsNotSupported(err) {
				return NewPathError("copy", f.obj.URI, err)
			}
		}
	}
	return f.copyContents(ctx, destURI)
}

// MoveTo copies the folder to another URI and deletes the source.
func (f *Folder) MoveTo(ctx context.Context, to string) error {
	if err := f.CopyTo(ctx, to); err != nil {
		return err
	}
	_, err := f.raw.DeleteAll(ctx)
	return err
}

// Download copies every object in the folder into a local directory,
// preserving the relative layout.
func (f *Folder) Download(ctx context.Context, localDir string) error {
	dest := "file://" + filepath.ToSlash(localDir)
	if !strings.HasSuffix(dest, "/") {
		dest += "/"
	}
	slog.Debug("downloading folder", "src", f.obj.URI, "dest", dest)
	return f.copyContents(ctx, dest)
}

// resolveDest applies the rename-or-nest convention and returns the
// destination folder URI, always "/"-terminated.
func (f *Folder) resolveDest(to string) (string, error) {
	dest, err := ParseObject(to)
	if err != nil {
		return "", err
	}
	// A bucket root has no name to rename to; it always nests.
	if dest.IsBucketRoot() && !strings.HasSuffix(to, "/") {
		to += "/"
	}
	if !strings.HasSuffix(to, "/") {
		return to + "/", nil
	}
	if f.obj.IsBucketRoot() {
		return to, nil
	}
	return to + f.obj.Basename() + "/", nil
}

// copyContents streams every object under the folder to the
// "/"-terminated destination folder URI, one object at a time.
func (f *Folder) copyContents(ctx context.Context, destFolder string) error {
	uris, err := f.raw.Objects(ctx)
	if err != nil {
		return err
	}
	for _, uri := range uris {
		rel := strings.TrimPrefix(uri, f.obj.URI)
		src, err := f.svc.File(uri)
		if err != nil {
			return err
		}
		if err := src.CopyTo(ctx, destFolder+rel); err != nil {
			return err
		}
	}
	return nil
}

// files resolves a list of URIs to File handles.
func (s *Service) files(uris []string) ([]*File, error) {
	out := make([]*File, 0, len(uris))
	for _, uri := range uris {
		f, err := s.File(uri)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func basenames(uris []string) []string {
	names := make([]string, 0, len(uris))
	for _, uri := range uris {
		obj, err := ParseObject(uri)
		if err != nil {
			names = append(names, uri)
			continue
		}
		names = append(names, obj.Basename())
	}
	return names
}
