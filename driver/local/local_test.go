package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/gobeaver/storekit"
)

func testDriver() *Driver {
	return &Driver{chunkSize: storekit.DefaultChunkSize}
}

func mustObject(t *testing.T, uri string) *storekit.Object {
	t.Helper()
	obj, err := storekit.ParseObject(uri)
	if err != nil {
		t.Fatalf("ParseObject(%q): %v", uri, err)
	}
	return obj
}

func TestFileOpenModes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := testDriver()

	path := filepath.Join(dir, "f.txt")
	obj := mustObject(t, path)

	raw, err := d.OpenFile(obj)
	if err != nil {
		t.Fatal(err)
	}

	// w creates and truncates.
	mode, _ := storekit.ParseMode("wb")
	if err := raw.Open(ctx, mode); err != nil {
		t.Fatalf("Open(wb): %v", err)
	}
	if _, err := raw.Write([]byte("content")); err != nil {
		t.Fatal(err)
	}
	if err := raw.Close(); err != nil {
		t.Fatal(err)
	}

	// r reads it back.
	mode, _ = storekit.ParseMode("rb")
	if err := raw.Open(ctx, mode); err != nil {
		t.Fatalf("Open(rb): %v", err)
	}
	got, err := io.ReadAll(raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "content" {
		t.Errorf("content = %q", got)
	}
	raw.Close()

	// x refuses to clobber.
	mode, _ = storekit.ParseMode("xb")
	if err := raw.Open(ctx, mode); !storekit.IsExist(err) {
		t.Fatalf("Open(xb) err = %v, want ErrExist", err)
	}

	// a appends.
	mode, _ = storekit.ParseMode("ab")
	if err := raw.Open(ctx, mode); err != nil {
		t.Fatal(err)
	}
	raw.Write([]byte("-more"))
	raw.Close()
	data, _ := os.ReadFile(path)
	if string(data) != "content-more" {
		t.Errorf("after append = %q", data)
	}
}

func TestFileOpenMissing(t *testing.T) {
	ctx := context.Background()
	d := testDriver()
	raw, err := d.OpenFile(mustObject(t, filepath.Join(t.TempDir(), "missing")))
	if err != nil {
		t.Fatal(err)
	}
	mode, _ := storekit.ParseMode("rb")
	if err := raw.Open(ctx, mode); !storekit.IsNotExist(err) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestFileCreatesParentDirs(t *testing.T) {
	ctx := context.Background()
	d := testDriver()
	path := filepath.Join(t.TempDir(), "deep", "nested", "f.txt")
	raw, err := d.OpenFile(mustObject(t, path))
	if err != nil {
		t.Fatal(err)
	}
	mode, _ := storekit.ParseMode("wb")
	if err := raw.Open(ctx, mode); err != nil {
		t.Fatalf("Open(wb): %v", err)
	}
	raw.Write([]byte("x"))
	if err := raw.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not created: %v", err)
	}
}

func TestFileExistsSizeDelete(t *testing.T) {
	ctx := context.Background()
	d := testDriver()
	path := filepath.Join(t.TempDir(), "f")
	os.WriteFile(path, []byte("12345"), 0o644)

	raw, err := d.OpenFile(mustObject(t, path))
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := raw.Exists(ctx); !ok {
		t.Error("Exists = false")
	}
	if size, _ := raw.Size(ctx); size != 5 {
		t.Errorf("Size = %d, want 5", size)
	}
	if err := raw.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := raw.Delete(ctx); !storekit.IsNotExist(err) {
		t.Fatalf("second Delete = %v, want ErrNotExist", err)
	}
	if ok, _ := raw.Exists(ctx); ok {
		t.Error("Exists = true after delete")
	}
}

func TestFileLoadFrom(t *testing.T) {
	ctx := context.Background()
	d := testDriver()
	path := filepath.Join(t.TempDir(), "loaded")
	raw, err := d.OpenFile(mustObject(t, path))
	if err != nil {
		t.Fatal(err)
	}
	n, err := raw.LoadFrom(ctx, strings.NewReader("streamed"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if n != int64(len("streamed")) {
		t.Errorf("n = %d", n)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "streamed" {
		t.Errorf("content = %q", data)
	}
}

func TestFileBlockSize(t *testing.T) {
	d := testDriver()
	path := filepath.Join(t.TempDir(), "f")
	os.WriteFile(path, []byte("x"), 0o644)

	raw, err := d.OpenFile(mustObject(t, path))
	if err != nil {
		t.Fatal(err)
	}
	bs, ok := raw.(storekit.CanBlockSize)
	if !ok {
		t.Fatal("local file lost CanBlockSize")
	}
	if bs.BlockSize() < 0 {
		t.Errorf("BlockSize = %d", bs.BlockSize())
	}
}

func TestPrefixListing(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0o755)
	os.WriteFile(filepath.Join(dir, "sub", "c.txt"), []byte("c"), 0o644)

	d := testDriver()
	raw, err := d.OpenPrefix(mustObject(t, dir+"/"))
	if err != nil {
		t.Fatal(err)
	}

	files, err := raw.Files(ctx)
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(files)
	if len(files) != 2 || !strings.HasSuffix(files[0], "/a.txt") {
		t.Errorf("Files = %v", files)
	}

	folders, err := raw.Folders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 1 || !strings.HasSuffix(folders[0], "/sub/") {
		t.Errorf("Folders = %v", folders)
	}

	objects, err := raw.Objects(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 3 {
		t.Errorf("Objects = %v", objects)
	}
	for _, uri := range objects {
		if !strings.HasPrefix(uri, dir+"/") {
			t.Errorf("object URI %q not under prefix", uri)
		}
	}
}

func TestPrefixDeleteAllAndCreate(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "target")
	os.MkdirAll(filepath.Join(dir, "sub"), 0o755)
	os.WriteFile(filepath.Join(dir, "a"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(dir, "sub", "b"), []byte("b"), 0o644)

	d := testDriver()
	raw, err := d.OpenPrefix(mustObject(t, dir))
	if err != nil {
		t.Fatal(err)
	}

	n, err := raw.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteAll = %d, want 2", n)
	}
	if ok, _ := raw.Exists(ctx); ok {
		t.Error("directory still exists")
	}

	if err := raw.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, _ := raw.Exists(ctx); !ok {
		t.Error("directory missing after Create")
	}
}

func TestPrefixMissingDirectory(t *testing.T) {
	ctx := context.Background()
	d := testDriver()
	raw, err := d.OpenPrefix(mustObject(t, filepath.Join(t.TempDir(), "nope")))
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := raw.Exists(ctx); ok {
		t.Error("Exists = true for missing directory")
	}
	objects, err := raw.Objects(ctx)
	if err != nil {
		t.Fatalf("Objects: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("Objects = %v, want none", objects)
	}
	if n, err := raw.DeleteAll(ctx); err != nil || n != 0 {
		t.Errorf("DeleteAll = %d, %v", n, err)
	}
}
