package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sekaiacg/apkforge/internal/git"
	"github.com/sekaiacg/apkforge/internal/pipeline"
	"github.com/sekaiacg/apkforge/internal/variant"
)

// runVariants handles the `apkforge variants` subcommand: it lists the
// catalog and marks which variants the current branch selects.
func runVariants(args []string) error {
	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			fmt.Println("Usage: apkforge variants")
			fmt.Println()
			fmt.Println("Lists catalog variants and marks those matching the current branch.")
			return nil
		}
	}

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	layout := pipeline.Layout{Root: root}

	catalog, err := variant.Load(layout.CatalogPath())
	if err != nil {
		return err
	}

	branch, err := git.BranchName(context.Background(), layout.ProjectDir())
	if err != nil {
		return fmt.Errorf("resolve branch: %w", err)
	}

	selected, err := variant.Select(catalog, branch)
	if err != nil {
		return err
	}
	matches := make(map[string]bool, len(selected))
	for _, v := range selected {
		matches[v.Name+"\x00"+v.OutputFile] = true
	}

	fmt.Printf("Branch: %s\n\n", branch)
	for _, v := range catalog {
		marker := " "
		if matches[v.Name+"\x00"+v.OutputFile] {
			marker = "*"
		}
		flavor := v.Flavor
		if flavor == "" {
			flavor = "-"
		}
		fmt.Printf("%s %-24s module=%s flavor=%s pattern=%s keys=%s\n",
			marker, v.Name, v.Module, flavor, v.BranchPattern, strings.Join(v.SignKeys, ","))
	}
	fmt.Printf("\n%d of %d variants match.\n", len(selected), len(catalog))
	return nil
}
