package gradle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// recordLogger captures log events for assertions.
type recordLogger struct {
	events []string
}

func (r *recordLogger) record(msg string, keysAndValues []interface{}) {
	r.events = append(r.events, fmt.Sprint(append([]interface{}{msg}, keysAndValues...)...))
}

func (r *recordLogger) Debug(msg string, keysAndValues ...interface{}) { r.record(msg, keysAndValues) }
func (r *recordLogger) Info(msg string, keysAndValues ...interface{})  { r.record(msg, keysAndValues) }
func (r *recordLogger) Warn(msg string, keysAndValues ...interface{})  { r.record(msg, keysAndValues) }
func (r *recordLogger) Error(msg string, keysAndValues ...interface{}) { r.record(msg, keysAndValues) }

func TestOutputName(t *testing.T) {
	tests := []struct {
		name      string
		buildType BuildType
		module    string
		flavor    string
		want      string
	}{
		{"release no flavor", Release, "app", "", "app-release-unsigned.apk"},
		{"debug no flavor", Debug, "app", "", "app-debug.apk"},
		{"release flavor", Release, "app-unpriv", "foss", "app-unpriv-foss-release-unsigned.apk"},
		{"debug flavor", Debug, "app-unpriv", "foss", "app-unpriv-foss-debug.apk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProject("/tmp/project", tt.buildType)
			if got := p.OutputName(tt.module, tt.flavor); got != tt.want {
				t.Errorf("OutputName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOutputPath_FindsNestedArtifact(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "app", "build", "outputs", "apk", "release")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	apkPath := filepath.Join(outDir, "app-release-unsigned.apk")
	if err := os.WriteFile(apkPath, []byte("apk"), 0o644); err != nil {
		t.Fatalf("write apk: %v", err)
	}

	p := NewProject(dir, Release)
	got, err := p.OutputPath("app", "")
	if err != nil {
		t.Fatalf("OutputPath() error = %v", err)
	}
	if got != apkPath {
		t.Errorf("OutputPath() = %q, want %q", got, apkPath)
	}
}

func TestOutputPath_NotFound(t *testing.T) {
	p := NewProject(t.TempDir(), Release)

	_, err := p.OutputPath("app", "")
	var notFound *ArtifactNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("OutputPath() error = %v, want *ArtifactNotFoundError", err)
	}
	if notFound.Filename != "app-release-unsigned.apk" {
		t.Errorf("Filename = %q, want app-release-unsigned.apk", notFound.Filename)
	}
}

func TestOutputPath_MissingProjectDir(t *testing.T) {
	// An unwalkable tree degrades to a not-found result, never a walk error.
	p := NewProject(filepath.Join(t.TempDir(), "gone"), Release)

	_, err := p.OutputPath("app", "")
	var notFound *ArtifactNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("OutputPath() error = %v, want *ArtifactNotFoundError", err)
	}
}

func TestOutputPath_SkipsUnreadableSubtree(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	dir := t.TempDir()
	blocked := filepath.Join(dir, "a-blocked")
	if err := os.Mkdir(blocked, 0o000); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Cleanup(func() { os.Chmod(blocked, 0o755) })

	outDir := filepath.Join(dir, "outputs")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	apkPath := filepath.Join(outDir, "app-release-unsigned.apk")
	if err := os.WriteFile(apkPath, []byte("apk"), 0o644); err != nil {
		t.Fatalf("write apk: %v", err)
	}

	p := NewProject(dir, Release)
	got, err := p.OutputPath("app", "")
	if err != nil {
		t.Fatalf("OutputPath() error = %v", err)
	}
	if got != apkPath {
		t.Errorf("OutputPath() = %q, want %q", got, apkPath)
	}
}

func TestInvoke_MissingWrapper(t *testing.T) {
	p := NewProject(t.TempDir(), Debug)

	err := p.Clean(context.Background())
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("Clean() error = %v, want *BuildError", err)
	}
	if buildErr.Task != "clean" {
		t.Errorf("Task = %q, want clean", buildErr.Task)
	}
}

func TestAssemble_TaskName(t *testing.T) {
	// The fake gradlew records its arguments so the task name can be checked.
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\n"
	if err := os.WriteFile(filepath.Join(dir, "gradlew"), []byte(script), 0o755); err != nil {
		t.Fatalf("write gradlew: %v", err)
	}

	log := &recordLogger{}
	p := NewProject(dir, Release).WithLogger(log)
	if err := p.Assemble(context.Background(), "app-unpriv", "foss"); err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	want := ":app-unpriv:assembleFossRelease\n"
	if string(args) != want {
		t.Errorf("gradlew args = %q, want %q", string(args), want)
	}

	// Task progress goes through the injected logger, not raw stdout.
	joined := strings.Join(log.events, "\n")
	if !strings.Contains(joined, ":app-unpriv:assembleFossRelease") {
		t.Errorf("logger events %q do not mention the task", joined)
	}
}
