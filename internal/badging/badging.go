// Package badging extracts package identity from a built APK by running
// `aapt dump badging` and parsing its key-value text output.
package badging

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/sekaiacg/apkforge/internal/sdk"
)

// VersionInfo is the package identity of a built APK. It is recomputed per
// build and never persisted.
type VersionInfo struct {
	PackageName string
	VersionName string
	VersionCode int
}

// ProbeError represents a badging dump or parse failure.
type ProbeError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("probe %s: %s", e.Path, e.Reason)
}

func (e *ProbeError) Unwrap() error { return e.Err }

var (
	packageNamePattern = regexp.MustCompile(`name='([^']+)'`)
	versionNamePattern = regexp.MustCompile(`versionName='([^']+)'`)
	versionCodePattern = regexp.MustCompile(`versionCode='([^']+)'`)
)

// Prober runs aapt against built APKs.
type Prober struct {
	toolPath string
}

// New locates aapt under the SDK root.
func New(sdkRoot string) (*Prober, error) {
	toolPath, err := sdk.FindTool(sdkRoot, "aapt")
	if err != nil {
		return nil, err
	}
	return &Prober{toolPath: toolPath}, nil
}

// Inspect dumps the badging of the APK at path and parses its identity.
// All three fields are required; a dump missing any of them fails.
func (p *Prober) Inspect(ctx context.Context, path string) (*VersionInfo, error) {
	cmd := exec.CommandContext(ctx, p.toolPath, "dump", "badging", path)
	output, err := cmd.Output()
	if err != nil {
		return nil, &ProbeError{Path: path, Reason: "aapt dump badging failed", Err: err}
	}

	info, err := parseBadging(string(output))
	if err != nil {
		return nil, &ProbeError{Path: path, Reason: "parse badging output", Err: err}
	}
	return info, nil
}

// parseBadging extracts the three identity fields from a badging dump.
// The first name='...' occurrence is the package name; versionName and
// versionCode are quoted literals elsewhere in the same dump.
func parseBadging(output string) (*VersionInfo, error) {
	packageName := packageNamePattern.FindStringSubmatch(output)
	if packageName == nil {
		return nil, fmt.Errorf("package name not found")
	}
	versionName := versionNamePattern.FindStringSubmatch(output)
	if versionName == nil {
		return nil, fmt.Errorf("versionName not found")
	}
	versionCode := versionCodePattern.FindStringSubmatch(output)
	if versionCode == nil {
		return nil, fmt.Errorf("versionCode not found")
	}

	code, err := strconv.Atoi(versionCode[1])
	if err != nil {
		return nil, fmt.Errorf("versionCode %q is not an integer: %w", versionCode[1], err)
	}

	return &VersionInfo{
		PackageName: packageName[1],
		VersionName: versionName[1],
		VersionCode: code,
	}, nil
}
