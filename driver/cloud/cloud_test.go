package cloud

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gobeaver/storekit"
)

// fakeAPI is an in-memory ObjectAPI recording calls.
type fakeAPI struct {
	data      []byte
	exists    bool
	uploads   int
	uploadErr error
}

func (a *fakeAPI) Exists(ctx context.Context) (bool, error) {
	return a.exists, nil
}

func (a *fakeAPI) Size(ctx context.Context) (int64, error) {
	if !a.exists {
		return 0, storekit.ErrNotExist
	}
	return int64(len(a.data)), nil
}

func (a *fakeAPI) Delete(ctx context.Context) error {
	if !a.exists {
		return storekit.ErrNotExist
	}
	a.exists = false
	a.data = nil
	return nil
}

func (a *fakeAPI) ReadRange(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if !a.exists {
		return nil, storekit.ErrNotExist
	}
	if offset > int64(len(a.data)) {
		offset = int64(len(a.data))
	}
	data := a.data[offset:]
	if length >= 0 && length < int64(len(data)) {
		data = data[:length]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (a *fakeAPI) Upload(ctx context.Context, r io.Reader) (int64, error) {
	a.uploads++
	if a.uploadErr != nil {
		return 0, a.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	a.data = data
	a.exists = true
	return int64(len(data)), nil
}

func newFile(t *testing.T, api ObjectAPI) *File {
	t.Helper()
	obj, err := storekit.ParseObject("gs://bucket/key")
	if err != nil {
		t.Fatal(err)
	}
	return NewFile(obj, api, 0)
}

func mode(t *testing.T, s string) storekit.Mode {
	t.Helper()
	m, err := storekit.ParseMode(s)
	if err != nil {
		t.Fatalf("ParseMode(%q): %v", s, err)
	}
	return m
}

// countTempFiles counts storekit staging files in the temp directory.
func countTempFiles(t *testing.T) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "storekit-*"))
	if err != nil {
		t.Fatal(err)
	}
	return len(matches)
}

func TestUnstagedRangedReads(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{data: []byte("0123456789"), exists: true}
	f := newFile(t, api)

	if err := f.Open(ctx, mode(t, "rb")); err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	buf := make([]byte, 4)
	if _, err := io.ReadFull(f, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "0123" {
		t.Errorf("read = %q", buf)
	}

	if _, err := f.Seek(7, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	rest, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(rest) != "789" {
		t.Errorf("read after seek = %q", rest)
	}
	if api.uploads != 0 {
		t.Errorf("reads triggered %d uploads", api.uploads)
	}
}

func TestOpenReadMissing(t *testing.T) {
	f := newFile(t, &fakeAPI{})
	if err := f.Open(context.Background(), mode(t, "rb")); !storekit.IsNotExist(err) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestOpenCreateExisting(t *testing.T) {
	f := newFile(t, &fakeAPI{exists: true})
	if err := f.Open(context.Background(), mode(t, "xb")); !storekit.IsExist(err) {
		t.Fatalf("err = %v, want ErrExist", err)
	}
}

func TestWriteStagesAndUploadsOnClose(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	f := newFile(t, api)

	before := countTempFiles(t)
	if err := f.Open(ctx, mode(t, "wb")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("uploaded")); err != nil {
		t.Fatal(err)
	}
	if api.uploads != 0 {
		t.Error("upload happened before Close")
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if string(api.data) != "uploaded" {
		t.Errorf("stored = %q", api.data)
	}
	if api.uploads != 1 {
		t.Errorf("uploads = %d, want 1", api.uploads)
	}
	if after := countTempFiles(t); after != before {
		t.Errorf("temp files leaked: %d -> %d", before, after)
	}
}

func TestAppendDownloadsExisting(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{data: []byte("abc"), exists: true}
	f := newFile(t, api)

	if err := f.Open(ctx, mode(t, "ab")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("def")); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if string(api.data) != "abcdef" {
		t.Errorf("stored = %q, want abcdef", api.data)
	}
}

func TestUpdatePreservesContent(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{data: []byte("0123456789"), exists: true}
	f := newFile(t, api)

	if err := f.Open(ctx, mode(t, "r+b")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Seek(4, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("XY")); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if string(api.data) != "0123XY6789" {
		t.Errorf("stored = %q", api.data)
	}
}

func TestWriteModeTruncates(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{data: []byte("old content"), exists: true}
	f := newFile(t, api)

	if err := f.Open(ctx, mode(t, "wb")); err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("new"))
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if string(api.data) != "new" {
		t.Errorf("stored = %q, want %q", api.data, "new")
	}
}

func TestWriteModeNoWritesTruncatesToEmpty(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{data: []byte("old"), exists: true}
	f := newFile(t, api)

	if err := f.Open(ctx, mode(t, "wb")); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if len(api.data) != 0 {
		t.Errorf("stored = %q, want empty", api.data)
	}
}

func TestTempCleanupOnUploadFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("upload failed")
	api := &fakeAPI{uploadErr: boom}
	f := newFile(t, api)

	before := countTempFiles(t)
	if err := f.Open(ctx, mode(t, "wb")); err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("doomed"))
	if err := f.Close(); !errors.Is(err, boom) {
		t.Fatalf("Close = %v, want upload error", err)
	}
	if after := countTempFiles(t); after != before {
		t.Errorf("temp files leaked after failed upload: %d -> %d", before, after)
	}
}

func TestLoadFromStreamsWithoutStaging(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	f := newFile(t, api)

	n, err := f.LoadFrom(ctx, strings.NewReader("direct"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if n != int64(len("direct")) {
		t.Errorf("n = %d", n)
	}
	if string(api.data) != "direct" {
		t.Errorf("stored = %q", api.data)
	}
}

func TestReadAfterWriteSeesStagedData(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{data: []byte("abcdef"), exists: true}
	f := newFile(t, api)

	if err := f.Open(ctx, mode(t, "r+b")); err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	// Unstaged read first.
	buf := make([]byte, 3)
	io.ReadFull(f, buf)
	if string(buf) != "abc" {
		t.Fatalf("read = %q", buf)
	}

	// Writing stages at the current position.
	f.Write([]byte("XYZ"))
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	all, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(all) != "abcXYZ" {
		t.Errorf("staged content = %q, want abcXYZ", all)
	}
}
