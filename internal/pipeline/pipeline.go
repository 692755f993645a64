// Package pipeline orchestrates the per-variant build, sign, and packaging
// flow.
//
// A run is strictly sequential: variants are processed one at a time in
// catalog order, and every external tool call blocks until it finishes.
// Gradle and apksigner share caches and output directories that are unsafe
// under concurrent use, so this is a correctness property rather than a
// missing optimization. The first failure aborts the whole run; there is no
// per-variant recovery or partial-success reporting.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sekaiacg/apkforge/internal/variant"
)

// MagiskArchiveName is the module archive filename in the artifact store.
const MagiskArchiveName = "magisk-module.zip"

// BuildTool compiles one variant and locates its output. The production
// implementation is gradle.Project.
type BuildTool interface {
	Clean(ctx context.Context) error
	Assemble(ctx context.Context, module, flavor string) error
	OutputPath(module, flavor string) (string, error)
}

// ArtifactSigner applies a signing-key chain to a stored artifact. The
// production implementation is signer.Signer.
type ArtifactSigner interface {
	Sign(ctx context.Context, path string, keys []string) error
	VerifyPrint(ctx context.Context, path string) error
}

// ModuleBuilder wraps a signed artifact into a Magisk module archive. The
// production implementation is magisk.Builder.
type ModuleBuilder interface {
	Build(ctx context.Context, dest, apkPath string) error
}

// Artifact is one signed output of a run.
type Artifact struct {
	Variant variant.Variant
	Path    string
}

// Runner drives a full pipeline run.
type Runner struct {
	Project     BuildTool
	Signer      ArtifactSigner
	Modules     ModuleBuilder
	ArtifactDir string
	Log         Logger
}

// Run builds every catalog variant matching branch. It returns the signed
// artifacts placed in the artifact store, including the module archive when
// one was produced. Zero matching variants is a valid, empty run.
func (r *Runner) Run(ctx context.Context, variants []variant.Variant, branch string) ([]Artifact, error) {
	log := r.Log
	if log == nil {
		log = defaultLogger()
	}

	selected, err := variant.Select(variants, branch)
	if err != nil {
		return nil, err
	}
	log.Info("selected variants", "branch", branch, "count", len(selected))

	if err := r.Project.Clean(ctx); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.ArtifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact store: %w", err)
	}

	var artifacts []Artifact
	for _, v := range selected {
		built, err := r.buildVariant(ctx, v, log)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, built...)
	}
	return artifacts, nil
}

// buildVariant runs one variant through build, locate, copy, sign, and
// optional module packaging.
func (r *Runner) buildVariant(ctx context.Context, v variant.Variant, log Logger) ([]Artifact, error) {
	log.Info("building variant", "name", v.Name, "module", v.Module, "flavor", v.Flavor)

	if err := r.Project.Assemble(ctx, v.Module, v.Flavor); err != nil {
		return nil, err
	}

	built, err := r.Project.OutputPath(v.Module, v.Flavor)
	if err != nil {
		return nil, err
	}

	stored := filepath.Join(r.ArtifactDir, v.OutputFile)
	if err := copyFile(built, stored); err != nil {
		return nil, fmt.Errorf("store artifact %s: %w", v.OutputFile, err)
	}

	if err := r.Signer.Sign(ctx, stored, v.SignKeys); err != nil {
		return nil, err
	}

	// Certificate inspection is diagnostic only; nothing branches on it.
	if err := r.Signer.VerifyPrint(ctx, stored); err != nil {
		log.Warn("certificate inspection failed", "path", stored, "error", err)
	}

	artifacts := []Artifact{{Variant: v, Path: stored}}

	if v.MagiskModule {
		archive := filepath.Join(r.ArtifactDir, MagiskArchiveName)
		if err := r.Modules.Build(ctx, archive, stored); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, Artifact{Variant: v, Path: archive})
	}

	return artifacts, nil
}

// copyFile copies src to dest byte-for-byte through a temp file and rename,
// so the artifact store never holds a half-copied artifact.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmpPath := dest + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, in); err != nil {
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	cleanupNeeded = false
	return nil
}
