package manifest

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFileDescriptorURL(t *testing.T) {
	fd := FileDescriptor{Filename: "go1.22.3.linux-amd64.tar.gz"}
	got := fd.URL("https://go.dev/dl")
	want := "https://go.dev/dl/go1.22.3.linux-amd64.tar.gz"
	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestRawManifestEntryDecodesUnknownFieldsAway(t *testing.T) {
	const body = `{
		"version": "go1.22.3",
		"stable": true,
		"unknown_field": {"nested": true},
		"files": [
			{"filename": "go1.22.3.linux-amd64.tar.gz", "os": "linux", "arch": "amd64",
			 "kind": "archive", "size": 100, "sha256": "aaa", "unused": 1}
		]
	}`

	var raw rawManifestEntry
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	want := rawManifestEntry{
		Version: "go1.22.3",
		Stable:  true,
		Files: []FileDescriptor{
			{Filename: "go1.22.3.linux-amd64.tar.gz", OS: "linux", Arch: "amd64", Kind: KindArchive, Size: 100, SHA256: "aaa"},
		},
	}
	if diff := cmp.Diff(want, raw); diff != "" {
		t.Errorf("rawManifestEntry mismatch (-want +got):\n%s", diff)
	}
}
