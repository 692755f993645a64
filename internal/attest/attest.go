// Package attest produces release attestations for the artifact store: a
// SHA256SUMS manifest over every built artifact and, when a signing key is
// configured, an armored detached PGP signature over the manifest.
package attest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// Environment variables carrying the optional attestation key.
const (
	EnvKey        = "BUILD_ATTEST_KEY"
	EnvPassphrase = "BUILD_ATTEST_KEY_PASSPHRASE"
)

// ChecksumsFile is the manifest filename, in coreutils sha256sum format.
const ChecksumsFile = "SHA256SUMS"

// WriteChecksums hashes every file and writes a SHA256SUMS manifest next to
// them in dir. Entries are sorted by filename so the manifest is stable
// regardless of build order. It returns the manifest path.
func WriteChecksums(dir string, files []string) (string, error) {
	names := make([]string, 0, len(files))
	sums := make(map[string]string, len(files))

	for _, file := range files {
		sum, err := hashFile(file)
		if err != nil {
			return "", err
		}
		name := filepath.Base(file)
		names = append(names, name)
		sums[name] = sum
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		fmt.Fprintf(&buf, "%s  %s\n", sums[name], name)
	}

	path := filepath.Join(dir, ChecksumsFile)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write checksums: %w", err)
	}
	return path, nil
}

// SignChecksums writes an armored detached signature over the manifest at
// sumsPath using the armored private key. An encrypted key is unlocked with
// passphrase. It returns the signature path (sumsPath + ".asc").
func SignChecksums(sumsPath string, armoredKey, passphrase []byte) (string, error) {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armoredKey))
	if err != nil {
		return "", fmt.Errorf("read attestation key: %w", err)
	}
	if len(entities) == 0 {
		return "", fmt.Errorf("attestation key ring is empty")
	}

	signer := entities[0]
	if signer.PrivateKey == nil {
		return "", fmt.Errorf("attestation key has no private key material")
	}
	if signer.PrivateKey.Encrypted {
		if len(passphrase) == 0 {
			return "", fmt.Errorf("attestation key is encrypted but %s is not set", EnvPassphrase)
		}
		if err := signer.PrivateKey.Decrypt(passphrase); err != nil {
			return "", fmt.Errorf("decrypt attestation key: %w", err)
		}
	}

	message, err := os.Open(sumsPath)
	if err != nil {
		return "", fmt.Errorf("open checksums: %w", err)
	}
	defer message.Close()

	sigPath := sumsPath + ".asc"
	out, err := os.Create(sigPath)
	if err != nil {
		return "", fmt.Errorf("create signature file: %w", err)
	}

	if err := openpgp.ArmoredDetachSign(out, signer, message, nil); err != nil {
		out.Close()
		os.Remove(sigPath)
		return "", fmt.Errorf("sign checksums: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close signature file: %w", err)
	}
	return sigPath, nil
}

// hashFile returns the hex SHA256 of a file, streaming rather than slurping
// since APKs can be tens of megabytes.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
