package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/sekaiacg/apkforge/internal/attest"
	"github.com/sekaiacg/apkforge/internal/badging"
	"github.com/sekaiacg/apkforge/internal/git"
	"github.com/sekaiacg/apkforge/internal/gradle"
	"github.com/sekaiacg/apkforge/internal/keystore"
	"github.com/sekaiacg/apkforge/internal/magisk"
	"github.com/sekaiacg/apkforge/internal/pipeline"
	"github.com/sekaiacg/apkforge/internal/preflight"
	"github.com/sekaiacg/apkforge/internal/signer"
	"github.com/sekaiacg/apkforge/internal/variant"
)

// runBuild handles the `apkforge build` subcommand: the full
// clean → build → sign → package flow for every variant matching the
// current branch.
func runBuild(args []string) error {
	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			printBuildHelp()
			return nil
		}
	}

	ctx := context.Background()
	log := &consoleLogger{}

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	layout := pipeline.Layout{Root: root}

	buildType, err := buildTypeFromEnv()
	if err != nil {
		return err
	}

	// Keystore secrets must be present before anything is built; a run
	// that cannot sign is doomed and should not waste a Gradle build.
	secrets, err := keystore.SecretsFromEnv()
	if err != nil {
		return err
	}
	if err := secrets.Provision(layout.KeystoreDir()); err != nil {
		return err
	}

	sdkRoot := os.Getenv("ANDROID_HOME")
	report, err := preflight.Check(ctx, sdkRoot)
	if err != nil {
		return err
	}
	for _, warning := range report.Warnings {
		log.Warn(warning)
	}

	catalog, err := variant.Load(layout.CatalogPath())
	if err != nil {
		return err
	}

	branch, err := git.BranchName(ctx, layout.ProjectDir())
	if err != nil {
		return fmt.Errorf("resolve branch: %w", err)
	}

	apkSigner, err := signer.New(sdkRoot, layout.KeystoreDir())
	if err != nil {
		return err
	}
	prober, err := badging.New(sdkRoot)
	if err != nil {
		return err
	}

	runner := &pipeline.Runner{
		Project: gradle.NewProject(layout.ProjectDir(), buildType).WithLogger(log),
		Signer:  apkSigner.WithLogger(log),
		Modules: magisk.NewBuilder(magisk.NewHTTPFetcher(), prober, magisk.SupportFiles{
			CustomizeTemplate: layout.CustomizeTemplate(),
			WhitelistXML:      layout.WhitelistXML(),
		}).WithLogger(log),
		ArtifactDir: layout.ArtifactDir(),
		Log:         log,
	}

	artifacts, err := runner.Run(ctx, catalog, branch)
	if err != nil {
		return err
	}

	if len(artifacts) == 0 {
		log.Info("no variants matched; nothing to build", "branch", branch)
		return nil
	}

	if err := writeAttestations(layout.ArtifactDir(), artifacts, log); err != nil {
		return err
	}

	log.Info("build finished", "artifacts", len(artifacts), "buildType", buildType)
	return nil
}

// writeAttestations writes the SHA256SUMS manifest and, when an attestation
// key is configured, a detached signature over it.
func writeAttestations(artifactDir string, artifacts []pipeline.Artifact, log *consoleLogger) error {
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		paths = append(paths, a.Path)
	}

	sumsPath, err := attest.WriteChecksums(artifactDir, paths)
	if err != nil {
		return err
	}
	log.Info("wrote checksum manifest", "path", sumsPath)

	key := os.Getenv(attest.EnvKey)
	if key == "" {
		return nil
	}
	sigPath, err := attest.SignChecksums(sumsPath, []byte(key), []byte(os.Getenv(attest.EnvPassphrase)))
	if err != nil {
		return err
	}
	log.Info("signed checksum manifest", "path", sigPath)
	return nil
}

// buildTypeFromEnv maps the BUILD_RELEASE toggle to a build type.
func buildTypeFromEnv() (gradle.BuildType, error) {
	value := os.Getenv("BUILD_RELEASE")
	if value == "" {
		return gradle.Debug, nil
	}
	release, err := strconv.ParseBool(value)
	if err != nil {
		return "", fmt.Errorf("BUILD_RELEASE=%q is not a boolean: %w", value, err)
	}
	if release {
		return gradle.Release, nil
	}
	return gradle.Debug, nil
}

func printBuildHelp() {
	fmt.Println("Usage: apkforge build")
	fmt.Println()
	fmt.Println("Builds every catalog variant whose branch_pattern matches the branch")
	fmt.Println("checked out in the OpenEUICC submodule, signs each output, and wraps")
	fmt.Println("the primary variant in a Magisk module archive.")
	fmt.Println()
	fmt.Println("Run from the repository root; outputs land in artifacts/.")
}
