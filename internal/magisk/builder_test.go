package magisk

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sekaiacg/apkforge/internal/badging"
)

// fakeFetcher returns a fixed installer byte sequence.
type fakeFetcher struct {
	data []byte
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	return f.data, f.err
}

// fakeProber returns a fixed VersionInfo.
type fakeProber struct {
	info *badging.VersionInfo
	err  error
}

func (f *fakeProber) Inspect(ctx context.Context, path string) (*badging.VersionInfo, error) {
	return f.info, f.err
}

var testVersion = &badging.VersionInfo{
	PackageName: "im.angry.openeuicc",
	VersionName: "0.9.2",
	VersionCode: 5,
}

const customizeTemplate = `PKG={{.PackageName}}
APK_PATH={{.ApkPath}}
APK_NAME={{.ApkName}}
set_perm "$MODPATH/{{.ApkPath}}" 0 0 0644
`

// newTestBuilder wires a builder with temp support files and fakes.
func newTestBuilder(t *testing.T, installer []byte) (*Builder, string) {
	t.Helper()

	dir := t.TempDir()
	customizePath := filepath.Join(dir, "customize.sh")
	whitelistPath := filepath.Join(dir, "privapp_whitelist_im.angry.openeuicc.xml")
	apkPath := filepath.Join(dir, "app-release.apk")

	files := map[string]string{
		customizePath: customizeTemplate,
		whitelistPath: "<permissions>\n  <privapp-permissions package=\"im.angry.openeuicc\"/>\n</permissions>\n",
		apkPath:       "PK\x03\x04 fake apk payload",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	builder := NewBuilder(
		&fakeFetcher{data: installer},
		&fakeProber{info: testVersion},
		SupportFiles{CustomizeTemplate: customizePath, WhitelistXML: whitelistPath},
	)
	return builder, apkPath
}

// readEntry returns the content and header of a named archive entry.
func readEntry(t *testing.T, zr *zip.Reader, name string) ([]byte, *zip.FileHeader) {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read entry %s: %v", name, err)
		}
		return data, &f.FileHeader
	}
	t.Fatalf("entry %s not found in archive", name)
	return nil, nil
}

func buildArchive(t *testing.T, builder *Builder, apkPath string) *zip.Reader {
	t.Helper()

	dest := filepath.Join(t.TempDir(), "magisk-module.zip")
	if err := builder.Build(context.Background(), dest, apkPath); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	return zr
}

func TestBuild_Layout(t *testing.T) {
	installer := []byte("#!/sbin/sh\n# installer\n")
	builder, apkPath := newTestBuilder(t, installer)
	zr := buildArchive(t, builder, apkPath)

	wantEntries := []struct {
		name   string
		method uint16
	}{
		{"META-INF/com/google/android/update-binary", zip.Deflate},
		{"META-INF/com/google/android/updater-script", zip.Store},
		{"system/system_ext/priv-app/OpenEUICC/OpenEUICC.apk", zip.Store},
		{"system/system_ext/etc/permissions/privapp_whitelist_im.angry.openeuicc.xml", zip.Deflate},
		{"customize.sh", zip.Deflate},
		{"uninstall.sh", zip.Deflate},
		{"module.prop", zip.Deflate},
	}

	if len(zr.File) != len(wantEntries) {
		t.Errorf("archive has %d entries, want %d", len(zr.File), len(wantEntries))
	}
	for i, want := range wantEntries {
		if i >= len(zr.File) {
			break
		}
		got := zr.File[i]
		if got.Name != want.name {
			t.Errorf("entry %d = %q, want %q", i, got.Name, want.name)
		}
		if got.Method != want.method {
			t.Errorf("entry %q method = %d, want %d", got.Name, got.Method, want.method)
		}
	}
}

func TestBuild_EntryContents(t *testing.T) {
	installer := []byte("#!/sbin/sh\n# installer\n")
	builder, apkPath := newTestBuilder(t, installer)
	zr := buildArchive(t, builder, apkPath)

	updateBinary, _ := readEntry(t, zr, "META-INF/com/google/android/update-binary")
	if !bytes.Equal(updateBinary, installer) {
		t.Error("update-binary does not match fetched installer")
	}

	updaterScriptData, _ := readEntry(t, zr, "META-INF/com/google/android/updater-script")
	if string(updaterScriptData) != "#MAGISK\n" {
		t.Errorf("updater-script = %q, want #MAGISK marker", updaterScriptData)
	}

	apkData, _ := readEntry(t, zr, "system/system_ext/priv-app/OpenEUICC/OpenEUICC.apk")
	wantApk, err := os.ReadFile(apkPath)
	if err != nil {
		t.Fatalf("read source apk: %v", err)
	}
	if !bytes.Equal(apkData, wantApk) {
		t.Error("embedded APK differs from signed input")
	}

	customize, _ := readEntry(t, zr, "customize.sh")
	wantCustomize := "PKG=im.angry.openeuicc\n" +
		"APK_PATH=system/system_ext/priv-app/OpenEUICC/OpenEUICC.apk\n" +
		"APK_NAME=OpenEUICC.apk\n" +
		"set_perm \"$MODPATH/system/system_ext/priv-app/OpenEUICC/OpenEUICC.apk\" 0 0 0644\n"
	if string(customize) != wantCustomize {
		t.Errorf("customize.sh = %q, want %q", customize, wantCustomize)
	}

	uninstall, _ := readEntry(t, zr, "uninstall.sh")
	if string(uninstall) != "pm uninstall im.angry.openeuicc" {
		t.Errorf("uninstall.sh = %q", uninstall)
	}
}

func TestBuild_Reproducible(t *testing.T) {
	installer := []byte("#!/sbin/sh\n# installer\n")
	builder, apkPath := newTestBuilder(t, installer)

	build := func() []byte {
		dest := filepath.Join(t.TempDir(), "magisk-module.zip")
		if err := builder.Build(context.Background(), dest, apkPath); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		data, err := os.ReadFile(dest)
		if err != nil {
			t.Fatalf("read archive: %v", err)
		}
		return data
	}

	first := build()
	second := build()
	if !bytes.Equal(first, second) {
		t.Error("two builds with identical inputs produced different archives")
	}
}

func TestBuild_ReplacesExistingArchive(t *testing.T) {
	installer := []byte("#!/sbin/sh\n")
	builder, apkPath := newTestBuilder(t, installer)

	dest := filepath.Join(t.TempDir(), "magisk-module.zip")
	if err := os.WriteFile(dest, []byte("stale not-a-zip"), 0o644); err != nil {
		t.Fatalf("write stale archive: %v", err)
	}

	if err := builder.Build(context.Background(), dest, apkPath); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if _, err := zip.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
		t.Errorf("rebuilt archive is not a valid zip: %v", err)
	}
}

func TestBuild_FetchFailureIsFatal(t *testing.T) {
	builder, apkPath := newTestBuilder(t, nil)
	builder.fetcher = &fakeFetcher{err: &FetchError{URL: InstallerURL, Err: fmt.Errorf("boom")}}

	dest := filepath.Join(t.TempDir(), "magisk-module.zip")
	err := builder.Build(context.Background(), dest, apkPath)
	if err == nil {
		t.Fatal("Build() error = nil, want FetchError")
	}
	if _, statErr := os.Stat(dest); statErr == nil {
		t.Error("archive written despite installer fetch failure")
	}
}

// recordLogger captures log events for assertions.
type recordLogger struct {
	events []string
}

func (r *recordLogger) record(msg string, keysAndValues []interface{}) {
	r.events = append(r.events, fmt.Sprint(append([]interface{}{msg}, keysAndValues...)...))
}

func (r *recordLogger) Debug(msg string, keysAndValues ...interface{}) { r.record(msg, keysAndValues) }
func (r *recordLogger) Info(msg string, keysAndValues ...interface{})  { r.record(msg, keysAndValues) }
func (r *recordLogger) Warn(msg string, keysAndValues ...interface{})  { r.record(msg, keysAndValues) }
func (r *recordLogger) Error(msg string, keysAndValues ...interface{}) { r.record(msg, keysAndValues) }

func TestBuild_LogsProgress(t *testing.T) {
	builder, apkPath := newTestBuilder(t, []byte("#!/sbin/sh\n"))
	log := &recordLogger{}
	builder.WithLogger(log)
	dest := filepath.Join(t.TempDir(), "magisk-module.zip")

	if err := builder.Build(context.Background(), dest, apkPath); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// Assembly progress goes through the injected logger, not raw stdout.
	var mentioned bool
	for _, event := range log.events {
		if strings.Contains(event, dest) {
			mentioned = true
		}
	}
	if !mentioned {
		t.Errorf("logger events %v do not mention the archive destination", log.events)
	}
}

func TestBuild_UsesPinnedInstallerURL(t *testing.T) {
	fetcher := &fakeFetcher{data: []byte("#!/sbin/sh\n")}
	builder, apkPath := newTestBuilder(t, nil)
	builder.fetcher = fetcher

	dest := filepath.Join(t.TempDir(), "magisk-module.zip")
	if err := builder.Build(context.Background(), dest, apkPath); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(fetcher.urls) != 1 || fetcher.urls[0] != InstallerURL {
		t.Errorf("fetched URLs = %v, want [%s]", fetcher.urls, InstallerURL)
	}
}
