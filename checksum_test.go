package storekit

import (
	"strings"
	"testing"
)

func TestCalculateChecksum(t *testing.T) {
	tests := []struct {
		algo ChecksumAlgorithm
		want string
	}{
		{ChecksumMD5, "65a8e27d8879283831b664bd8b7f0ad4"},
		{ChecksumSHA1, "0a0a9f2a6772942557ab5355d76af442f8f65e01"},
		{ChecksumSHA256, "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"},
		{ChecksumCRC32, "ec4ac3d0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.algo), func(t *testing.T) {
			got, err := CalculateChecksum(strings.NewReader("Hello, World!"), tt.algo)
			if err != nil {
				t.Fatalf("CalculateChecksum: %v", err)
			}
			if got != tt.want {
				t.Errorf("checksum = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCalculateChecksumUnsupported(t *testing.T) {
	_, err := CalculateChecksum(strings.NewReader("x"), "whirlpool")
	if !IsNotSupported(err) {
		t.Fatalf("err = %v, want ErrNotSupported", err)
	}
}

func TestCalculateChecksumsSinglePass(t *testing.T) {
	got, err := CalculateChecksums(strings.NewReader("Hello, World!"),
		[]ChecksumAlgorithm{ChecksumMD5, ChecksumSHA256, ChecksumXXHash})
	if err != nil {
		t.Fatalf("CalculateChecksums: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	if got[ChecksumMD5] != "65a8e27d8879283831b664bd8b7f0ad4" {
		t.Errorf("md5 = %q", got[ChecksumMD5])
	}
	if got[ChecksumSHA256] != "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f" {
		t.Errorf("sha256 = %q", got[ChecksumSHA256])
	}
	if got[ChecksumXXHash] == "" {
		t.Error("xxhash result missing")
	}
}

func TestCalculateChecksumsNoAlgorithms(t *testing.T) {
	if _, err := CalculateChecksums(strings.NewReader("x"), nil); err == nil {
		t.Fatal("want error for empty algorithm list")
	}
}
