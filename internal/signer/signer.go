// Package signer applies APK signing-key chains with apksigner.
//
// See https://developer.android.com/tools/apksigner for the flag protocol.
package signer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sekaiacg/apkforge/internal/logging"
	"github.com/sekaiacg/apkforge/internal/sdk"
)

// SigningError represents an apksigner failure for an APK.
type SigningError struct {
	Path string
	Err  error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("sign %s: %v", e.Path, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// Signer invokes apksigner with an ordered keystore chain.
type Signer struct {
	toolPath    string
	keystoreDir string
	log         logging.Logger
}

// New locates apksigner under the SDK root and returns a Signer reading
// keystores from keystoreDir. Keystore passwords are read from sibling
// files with the extension replaced by .txt.
func New(sdkRoot, keystoreDir string) (*Signer, error) {
	toolPath, err := sdk.FindTool(sdkRoot, "apksigner")
	if err != nil {
		return nil, err
	}
	return &Signer{toolPath: toolPath, keystoreDir: keystoreDir, log: logging.Noop()}, nil
}

// WithLogger sets the logger for signing progress and returns the signer.
func (s *Signer) WithLogger(log logging.Logger) *Signer {
	s.log = log
	return s
}

// Sign signs the APK at path with every key in keys, in order. The key
// chain is expressed in a single apksigner invocation; the first key is the
// primary signer and each later key follows a --next-signer marker.
func (s *Signer) Sign(ctx context.Context, path string, keys []string) error {
	if len(keys) == 0 {
		return &SigningError{Path: path, Err: fmt.Errorf("no signing keys given")}
	}

	s.log.Info("signing artifact", "path", path, "keys", len(keys))
	args := signArgs(s.keystoreDir, path, keys)

	cmd := exec.CommandContext(ctx, s.toolPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return &SigningError{Path: path, Err: err}
	}
	return nil
}

// VerifyPrint dumps the certificate chain of a signed APK for operator
// inspection. It is diagnostic only; callers log failures as warnings.
func (s *Signer) VerifyPrint(ctx context.Context, path string) error {
	s.log.Info("printing artifact certificates", "path", path)

	cmd := exec.CommandContext(ctx, s.toolPath, "verify", "--print-certs", path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	return nil
}

// signArgs builds the argument list for one apksigner sign invocation.
// Scheme flags are fixed policy: v1 and v2 enabled, v3 and v4 disabled.
func signArgs(keystoreDir, apkPath string, keys []string) []string {
	args := []string{
		"sign",
		"--v1-signing-enabled=true",
		"--v2-signing-enabled=true",
		"--v3-signing-enabled=false",
		"--v4-signing-enabled=false",
	}

	for i, key := range keys {
		keystorePath := filepath.Join(keystoreDir, key)
		if i > 0 {
			args = append(args, "--next-signer")
		}
		args = append(args,
			fmt.Sprintf("--ks=%s", keystorePath),
			fmt.Sprintf("--ks-pass=file:%s", passwordPath(keystorePath)),
		)
	}

	return append(args, apkPath)
}

// passwordPath replaces the keystore path's extension with .txt.
func passwordPath(keystorePath string) string {
	return strings.TrimSuffix(keystorePath, filepath.Ext(keystorePath)) + ".txt"
}
