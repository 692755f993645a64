// Package keystore provisions signing keystores from CI secrets.
//
// The keystore bundle arrives as environment variables: a base64-encoded,
// password-protected zip and its password. Provisioning happens before any
// build-tool invocation so a missing secret aborts an otherwise doomed run
// up front.
package keystore

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	zip "github.com/yeka/zip"
)

// Environment variables carrying the keystore bundle.
const (
	EnvArchive  = "BUILD_KEYSTORE_ZIPPED"
	EnvPassword = "BUILD_KEYSTORE_PASSWORD"
)

// ConfigError represents missing or malformed keystore secrets.
type ConfigError struct {
	Message string
	Detail  string
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// Secrets holds the keystore bundle read from the environment.
type Secrets struct {
	archive  string // base64-encoded zip
	password string
}

// SecretsFromEnv reads the keystore bundle from the environment. Either
// variable being unset or empty is a *ConfigError naming both variables, so
// the operator sees the full requirement at once.
func SecretsFromEnv() (*Secrets, error) {
	archive := os.Getenv(EnvArchive)
	password := os.Getenv(EnvPassword)
	if archive == "" || password == "" {
		return nil, &ConfigError{
			Message: fmt.Sprintf("environment variables %s and %s must be set", EnvArchive, EnvPassword),
		}
	}
	return &Secrets{archive: archive, password: password}, nil
}

// Provision decodes the bundle and extracts every keystore and password
// file into destDir.
func (s *Secrets) Provision(destDir string) error {
	raw, err := base64.StdEncoding.DecodeString(s.archive)
	if err != nil {
		return &ConfigError{
			Message: fmt.Sprintf("%s is not valid base64", EnvArchive),
			Detail:  err.Error(),
		}
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return &ConfigError{
			Message: fmt.Sprintf("%s is not a zip archive", EnvArchive),
			Detail:  err.Error(),
		}
	}

	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return fmt.Errorf("create keystore dir: %w", err)
	}

	for _, f := range zr.File {
		if err := s.extractFile(f, destDir); err != nil {
			return err
		}
	}
	return nil
}

// extractFile extracts a single archive member with a path-traversal guard.
func (s *Secrets) extractFile(f *zip.File, destDir string) error {
	target := filepath.Join(destDir, f.Name)

	// Security check: prevent path traversal
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal file path in keystore bundle: %s", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", target, err)
		}
		return nil
	}

	if f.IsEncrypted() {
		f.SetPassword(s.password)
	}

	rc, err := f.Open()
	if err != nil {
		return &ConfigError{
			Message: fmt.Sprintf("open keystore bundle member %s (wrong %s?)", f.Name, EnvPassword),
			Detail:  err.Error(),
		}
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	return out.Close()
}
