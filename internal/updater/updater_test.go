package updater

import (
	"archive/tar"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNeedsUpdate(t *testing.T) {
	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
	}{
		{"same version", "v0.2.1", "v0.2.1", false},
		{"patch update", "v0.2.1", "v0.2.2", true},
		{"minor update", "v0.2.1", "v0.3.0", true},
		{"major update", "v0.2.1", "v1.0.0", true},
		{"current is newer", "v0.3.0", "v0.2.9", false},
		{"without v prefix", "0.2.1", "0.2.2", true},
		{"mixed prefixes", "v0.2.1", "0.2.2", true},
		{"dev build wants a release", "dev", "v0.2.2", true},
		{"dev to dev", "dev", "dev", false},
		{"multi-digit components", "v0.2.9", "v0.2.10", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsUpdate(tt.current, tt.latest); got != tt.want {
				t.Errorf("NeedsUpdate(%q, %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input string
		want  [3]int
	}{
		{"0.2.10", [3]int{0, 2, 10}},
		{"1.0.0", [3]int{1, 0, 0}},
		{"not-a-version", [3]int{0, 0, 0}},
		{"1.2", [3]int{1, 2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseVersion(tt.input); got != tt.want {
				t.Errorf("parseVersion(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCheckLatestVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"tag_name": "v0.2.5", "name": "v0.2.5"}`))
	}))
	defer server.Close()

	oldURL := apiURL
	apiURL = server.URL
	defer func() { apiURL = oldURL }()

	got, err := CheckLatestVersion()
	if err != nil {
		t.Fatalf("CheckLatestVersion() error = %v", err)
	}
	if got != "v0.2.5" {
		t.Errorf("CheckLatestVersion() = %q, want %q", got, "v0.2.5")
	}
}

func TestCheckLatestVersion_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	oldURL := apiURL
	apiURL = server.URL
	defer func() { apiURL = oldURL }()

	if _, err := CheckLatestVersion(); err == nil {
		t.Error("CheckLatestVersion() error = nil, want error for 404")
	}
}

func writeArchive(t *testing.T, path, memberName, content string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)
	if err := tw.WriteHeader(&tar.Header{
		Name:     memberName,
		Mode:     0o755,
		Size:     int64(len(content)),
		Typeflag: tar.TypeReg,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "release.tar.gz")
	writeArchive(t, archive, "cargo-for-each_linux_amd64/cargo-for-each", "new binary")

	if err := extractTarGz(archive, dir, "cargo-for-each"); err != nil {
		t.Fatalf("extractTarGz() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "cargo-for-each"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new binary" {
		t.Errorf("extracted content = %q, want %q", data, "new binary")
	}
}

func TestExtractTarGz_MissingBinary(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "release.tar.gz")
	writeArchive(t, archive, "README.md", "docs only")

	if err := extractTarGz(archive, dir, "cargo-for-each"); err == nil {
		t.Error("extractTarGz() error = nil, want missing-binary error")
	}
}

func TestReplaceBinary(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "cargo-for-each")
	next := filepath.Join(dir, "cargo-for-each.new")
	if err := os.WriteFile(current, []byte("old"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(next, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := replaceBinary(current, next); err != nil {
		t.Fatalf("replaceBinary() error = %v", err)
	}

	data, err := os.ReadFile(current)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("binary content = %q, want %q", data, "new")
	}
	if _, err := os.Stat(current + ".old"); !os.IsNotExist(err) {
		t.Error("backup file should be removed after a successful swap")
	}
}
