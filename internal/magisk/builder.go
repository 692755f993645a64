// Package magisk assembles the Magisk module archive around a signed APK.
//
// The archive layout is a binary contract with the Magisk installer: entry
// paths are archive-internal POSIX paths, and two entries must be stored
// uncompressed (the updater-script marker, which some recovery consumers
// read without inflate support, and the APK itself, whose byte layout is
// signing-sensitive). Given identical inputs the output is reproducible
// byte-for-byte; the only non-deterministic input is the installer script
// fetched at build time.
package magisk

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"text/template"

	"github.com/sekaiacg/apkforge/internal/badging"
	"github.com/sekaiacg/apkforge/internal/logging"
)

// InstallerURL is the pinned Magisk module installer. The commit hash keeps
// upstream changes from silently altering release archives.
const InstallerURL = "https://github.com/topjohnwu/Magisk/raw/bf4ed29/scripts/module_installer.sh"

// updaterScript is the literal marker Magisk expects; it tells recovery the
// zip is a Magisk module rather than a flashable ROM.
const updaterScript = "#MAGISK\n"

// Archive-internal layout.
const (
	metaInfDir    = "META-INF/com/google/android"
	systemExtDir  = "system/system_ext"
	moduleApkPath = systemExtDir + "/priv-app/OpenEUICC/OpenEUICC.apk"
)

// Prober extracts package identity from a built APK. The production
// implementation is badging.Prober.
type Prober interface {
	Inspect(ctx context.Context, path string) (*badging.VersionInfo, error)
}

// SupportFiles are the non-APK inputs embedded into the archive.
type SupportFiles struct {
	// CustomizeTemplate is the path to the customize.sh text/template.
	CustomizeTemplate string
	// WhitelistXML is the path to the privapp permissions manifest.
	WhitelistXML string
}

// customizeData is the substitution data for the customize.sh template.
type customizeData struct {
	PackageName string
	ApkPath     string
	ApkName     string
}

// Builder assembles Magisk module archives.
type Builder struct {
	fetcher      Fetcher
	prober       Prober
	support      SupportFiles
	installerURL string
	log          logging.Logger
}

// NewBuilder creates an archive builder. The fetcher is injectable so tests
// substitute a fixed installer byte sequence for the network.
func NewBuilder(fetcher Fetcher, prober Prober, support SupportFiles) *Builder {
	return &Builder{
		fetcher:      fetcher,
		prober:       prober,
		support:      support,
		installerURL: InstallerURL,
		log:          logging.Noop(),
	}
}

// WithLogger sets the logger for assembly progress and returns the builder.
func (b *Builder) WithLogger(log logging.Logger) *Builder {
	b.log = log
	return b
}

// Build assembles the module archive at dest around the signed APK at
// apkPath. Any pre-existing archive at dest is removed first; the archive
// is always a full rebuild, never a merge.
func (b *Builder) Build(ctx context.Context, dest, apkPath string) error {
	b.log.Info("assembling module archive", "dest", dest, "apk", apkPath)

	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale archive: %w", err)
	}

	version, err := b.prober.Inspect(ctx, apkPath)
	if err != nil {
		return err
	}

	installer, err := b.fetcher.Fetch(ctx, b.installerURL)
	if err != nil {
		return err
	}

	apk, err := os.ReadFile(apkPath)
	if err != nil {
		return fmt.Errorf("read APK: %w", err)
	}
	whitelist, err := os.ReadFile(b.support.WhitelistXML)
	if err != nil {
		return fmt.Errorf("read permissions manifest: %w", err)
	}
	customize, err := renderCustomize(b.support.CustomizeTemplate, customizeData{
		PackageName: version.PackageName,
		ApkPath:     moduleApkPath,
		ApkName:     path.Base(moduleApkPath),
	})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := writeArchive(&buf, apk, whitelist, installer, customize, version); err != nil {
		return err
	}

	if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return nil
}

// writeArchive lays out the zip. Entry order is part of the byte contract.
func writeArchive(w io.Writer, apk, whitelist, installer []byte, customize string, version *badging.VersionInfo) error {
	zw := zip.NewWriter(w)
	// The original packaging used deflate level 9.
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	permsPath := fmt.Sprintf("%s/etc/permissions/privapp_whitelist_%s.xml",
		systemExtDir, version.PackageName)

	entries := []struct {
		name   string
		data   []byte
		method uint16
	}{
		{metaInfDir + "/update-binary", installer, zip.Deflate},
		{metaInfDir + "/updater-script", []byte(updaterScript), zip.Store},
		{moduleApkPath, apk, zip.Store},
		{permsPath, whitelist, zip.Deflate},
		{"customize.sh", []byte(customize), zip.Deflate},
		{"uninstall.sh", []byte(uninstallScript(version.PackageName)), zip.Deflate},
		{"module.prop", []byte(moduleProp(version)), zip.Deflate},
	}

	for _, e := range entries {
		// Timestamps stay at the zero value so output is reproducible.
		f, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: e.method})
		if err != nil {
			return fmt.Errorf("create archive entry %s: %w", e.name, err)
		}
		if _, err := f.Write(e.data); err != nil {
			return fmt.Errorf("write archive entry %s: %w", e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// renderCustomize renders the customize.sh template with the package
// identity and in-archive APK placement.
func renderCustomize(templatePath string, data customizeData) (string, error) {
	tmpl, err := template.ParseFiles(templatePath)
	if err != nil {
		return "", fmt.Errorf("parse customize template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render customize template: %w", err)
	}
	return buf.String(), nil
}
