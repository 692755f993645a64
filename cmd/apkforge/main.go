package main

import (
	"fmt"
	"os"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	// Handle subcommands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version":
			fmt.Printf("apkforge %s\n", Version)
			fmt.Println("Release packaging pipeline for OpenEUICC")
			return
		case "build":
			// Handle apkforge build subcommand
			if err := runBuild(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "variants":
			// Handle apkforge variants subcommand
			if err := runVariants(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "doctor":
			// Handle apkforge doctor subcommand
			if err := runDoctor(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	// Default: show help
	fmt.Println("apkforge - release packaging pipeline for OpenEUICC")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  apkforge --version       Show version information")
	fmt.Println("  apkforge build           Build, sign, and package all variants for this branch")
	fmt.Println("  apkforge variants        List catalog variants and which match the current branch")
	fmt.Println("  apkforge doctor          Check the build host and tool setup")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  BUILD_RELEASE            \"true\" for release builds (default: debug)")
	fmt.Println("  BUILD_KEYSTORE_ZIPPED    base64 of the password-protected keystore zip")
	fmt.Println("  BUILD_KEYSTORE_PASSWORD  password for the keystore zip")
	fmt.Println("  BUILD_ATTEST_KEY         optional armored PGP key for signing SHA256SUMS")
	fmt.Println("  ANDROID_HOME             Android SDK root (apksigner, aapt)")
}
