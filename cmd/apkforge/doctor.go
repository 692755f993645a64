package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sekaiacg/apkforge/internal/keystore"
	"github.com/sekaiacg/apkforge/internal/pipeline"
	"github.com/sekaiacg/apkforge/internal/preflight"
	"github.com/sekaiacg/apkforge/internal/sdk"
	"github.com/sekaiacg/apkforge/internal/variant"
)

// runDoctor handles the `apkforge doctor` subcommand: a read-only check of
// the build host, SDK tools, project checkout, and catalog.
func runDoctor(args []string) error {
	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			fmt.Println("Usage: apkforge doctor")
			fmt.Println()
			fmt.Println("Checks the build host, SDK tools, and repository layout.")
			return nil
		}
	}

	ctx := context.Background()

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	layout := pipeline.Layout{Root: root}
	sdkRoot := os.Getenv("ANDROID_HOME")

	report, err := preflight.Check(ctx, sdkRoot)
	if err != nil {
		return err
	}

	fmt.Printf("Host: %s/%s", report.OS, report.Arch)
	if report.Platform != "" {
		fmt.Printf(" (%s %s)", report.Platform, report.PlatformVersion)
	}
	fmt.Println()
	if report.TotalMemory > 0 {
		fmt.Printf("Memory: %.1f GiB total, %.1f GiB available\n",
			float64(report.TotalMemory)/(1<<30), float64(report.AvailableMemory)/(1<<30))
	}
	fmt.Println()

	ok := true
	ok = check("gradle wrapper", fileCheck(filepath.Join(layout.ProjectDir(), "gradlew"))) && ok
	ok = check("variant catalog", func() error {
		_, err := variant.Load(layout.CatalogPath())
		return err
	}) && ok
	ok = check("apksigner", toolCheck(sdkRoot, "apksigner")) && ok
	ok = check("aapt", toolCheck(sdkRoot, "aapt")) && ok
	ok = check("keystore secrets", func() error {
		_, err := keystore.SecretsFromEnv()
		return err
	}) && ok

	for _, warning := range report.Warnings {
		fmt.Printf("warn  %s\n", warning)
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

// check runs one named probe and prints its outcome.
func check(name string, probe func() error) bool {
	if err := probe(); err != nil {
		fmt.Printf("FAIL  %-18s %v\n", name, err)
		return false
	}
	fmt.Printf("ok    %s\n", name)
	return true
}

func fileCheck(path string) func() error {
	return func() error {
		if _, err := os.Stat(path); err != nil {
			return err
		}
		return nil
	}
}

func toolCheck(sdkRoot, name string) func() error {
	return func() error {
		_, err := sdk.FindTool(sdkRoot, name)
		return err
	}
}
