package storekit

import (
	"errors"
	"testing"
)

func TestParseObject(t *testing.T) {
	tests := []struct {
		uri    string
		scheme string
		host   string
		path   string
	}{
		{"gs://bucket/path/file.txt", "gs", "bucket", "/path/file.txt"},
		{"s3://bucket/key", "s3", "bucket", "/key"},
		{"gs://bucket/", "gs", "bucket", "/"},
		{"gs://bucket", "gs", "bucket", ""},
		{"file:///var/data/x", "file", "", "/var/data/x"},
		{"/var/data/x", "file", "", "/var/data/x"},
		{"relative/path.txt", "file", "", "relative/path.txt"},
		{"https://example.com/a/b", "https", "example.com", "/a/b"},
		{"sftp://host:2022/home/u/f", "sftp", "host:2022", "/home/u/f"},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			obj, err := ParseObject(tt.uri)
			if err != nil {
				t.Fatalf("ParseObject(%q): %v", tt.uri, err)
			}
			if obj.Scheme != tt.scheme {
				t.Errorf("Scheme = %q, want %q", obj.Scheme, tt.scheme)
			}
			if obj.Host != tt.host {
				t.Errorf("Host = %q, want %q", obj.Host, tt.host)
			}
			if obj.Path != tt.path {
				t.Errorf("Path = %q, want %q", obj.Path, tt.path)
			}
			if obj.URI != tt.uri {
				t.Errorf("URI = %q, want %q", obj.URI, tt.uri)
			}
		})
	}
}

func TestParseObjectEmpty(t *testing.T) {
	_, err := ParseObject("")
	if !errors.Is(err, ErrInvalidName) {
		t.Fatalf("err = %v, want ErrInvalidName", err)
	}
}

func TestObjectBasename(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/a/b.txt", "b.txt"},
		{"gs://bucket/a/b/", "b"},
		{"gs://bucket/", ""},
		{"/var/data", "data"},
	}
	for _, tt := range tests {
		obj, err := ParseObject(tt.uri)
		if err != nil {
			t.Fatalf("ParseObject(%q): %v", tt.uri, err)
		}
		if got := obj.Basename(); got != tt.want {
			t.Errorf("Basename(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestObjectKey(t *testing.T) {
	obj, err := ParseObject("gs://bucket/a/b.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got := obj.Key(); got != "a/b.txt" {
		t.Errorf("Key() = %q, want %q", got, "a/b.txt")
	}
}

func TestObjectIsBucketRoot(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{"gs://bucket", true},
		{"gs://bucket/", true},
		{"gs://bucket/key", false},
		{"/var/data", false},
	}
	for _, tt := range tests {
		obj, err := ParseObject(tt.uri)
		if err != nil {
			t.Fatal(err)
		}
		if got := obj.IsBucketRoot(); got != tt.want {
			t.Errorf("IsBucketRoot(%q) = %v, want %v", tt.uri, got, tt.want)
		}
	}
}

func TestObjectAsFolder(t *testing.T) {
	obj, err := ParseObject("gs://bucket/a/b")
	if err != nil {
		t.Fatal(err)
	}
	folder := obj.asFolder()
	if folder.URI != "gs://bucket/a/b/" || folder.Path != "/a/b/" {
		t.Errorf("asFolder() = %q %q", folder.URI, folder.Path)
	}
	// Already a folder stays untouched.
	if again := folder.asFolder(); again.URI != folder.URI {
		t.Errorf("asFolder twice changed URI to %q", again.URI)
	}
}
