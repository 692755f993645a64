// Package gradle drives the Android project's Gradle wrapper.
//
// The pipeline treats Gradle as an opaque tool: it invokes one assemble task
// per variant, waits for it synchronously, and then locates the produced APK
// by the wrapper's output naming convention. Builds share Gradle's cache and
// output directories, so invocations must never overlap.
package gradle

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sekaiacg/apkforge/internal/logging"
)

// BuildType selects the Gradle build type for every task in a run.
// It is threaded explicitly from the CLI; nothing reads it ambiently.
type BuildType string

const (
	// Debug builds are signed by Gradle with the debug identity.
	Debug BuildType = "debug"
	// Release builds come out of Gradle unsigned.
	Release BuildType = "release"
)

// BuildError represents a Gradle task failure.
type BuildError struct {
	Task string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("gradle task %s failed: %v", e.Task, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// ArtifactNotFoundError indicates a successful build produced no file
// matching the output naming convention. This is a contract violation
// between Gradle and the pipeline and is never retried.
type ArtifactNotFoundError struct {
	Filename string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("build output %s not found", e.Filename)
}

// Project wraps a Gradle project checkout.
type Project struct {
	dir       string
	buildType BuildType
	log       logging.Logger
}

// NewProject creates a Gradle driver for the project at dir building with
// the given build type.
func NewProject(dir string, buildType BuildType) *Project {
	return &Project{dir: dir, buildType: buildType, log: logging.Noop()}
}

// WithLogger sets the logger for task progress and returns the project.
func (p *Project) WithLogger(log logging.Logger) *Project {
	p.log = log
	return p
}

// BuildType returns the build type this project was configured with.
func (p *Project) BuildType() BuildType {
	return p.buildType
}

// Clean runs the Gradle clean task.
func (p *Project) Clean(ctx context.Context) error {
	return p.invoke(ctx, "clean")
}

// Assemble builds one module with an optional flavor, e.g.
// ":app:assembleRelease" or ":app-unpriv:assembleFossDebug".
func (p *Project) Assemble(ctx context.Context, module, flavor string) error {
	task := fmt.Sprintf(":%s:assemble%s%s", module, title(flavor), title(string(p.buildType)))
	return p.invoke(ctx, task)
}

// invoke runs one gradlew task synchronously, streaming its output.
func (p *Project) invoke(ctx context.Context, task string) error {
	gradlew := filepath.Join(p.dir, "gradlew")
	p.log.Info("running gradle task", "task", task)

	cmd := exec.CommandContext(ctx, gradlew, task)
	cmd.Dir = p.dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return &BuildError{Task: task, Err: err}
	}
	return nil
}

// OutputName returns the conventional basename of the APK Gradle produces
// for a module/flavor pair: {module}[-{flavor}]-{buildType}[-unsigned].apk.
// The -unsigned suffix applies only to release builds; debug APKs come out
// of Gradle already signed with the debug identity.
func (p *Project) OutputName(module, flavor string) string {
	parts := []string{module}
	if flavor != "" {
		parts = append(parts, flavor)
	}
	parts = append(parts, string(p.buildType))
	if p.buildType == Release {
		parts = append(parts, "unsigned")
	}
	return strings.Join(parts, "-") + ".apk"
}

// OutputPath locates the built APK for a module/flavor pair anywhere under
// the project tree. It returns *ArtifactNotFoundError when no file matches.
func (p *Project) OutputPath(module, flavor string) (string, error) {
	filename := p.OutputName(module, flavor)

	var found string
	// Unreadable subtrees are skipped, not fatal: the search only needs
	// the first basename match, and a miss already has an error of its own.
	_ = filepath.WalkDir(p.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && d.Name() == filename {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if found == "" {
		return "", &ArtifactNotFoundError{Filename: filename}
	}
	return found, nil
}

// title upper-cases the first letter the way Gradle task names expect
// ("release" -> "Release"). Empty flavors stay empty.
func title(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
