// Package preflight inspects the build host before a run starts.
//
// A Gradle release build with the Kotlin daemon comfortably needs several
// gigabytes of memory; warning about a starved host up front is cheaper than
// diagnosing a daemon OOM twenty minutes into a build. Preflight findings
// are advisory only and never abort a run.
package preflight

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// MinBuildMemory is the available-memory floor below which a warning is
// emitted.
const MinBuildMemory = 4 << 30

// Report describes the build host and any advisory findings.
type Report struct {
	OS              string
	Arch            string
	Platform        string
	PlatformVersion string
	TotalMemory     uint64
	AvailableMemory uint64
	Warnings        []string
}

// Check gathers host information and flags conditions likely to break or
// slow the build. sdkRoot is the resolved ANDROID_HOME value; empty means
// unset.
func Check(ctx context.Context, sdkRoot string) (*Report, error) {
	report := &Report{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	// Platform details are cosmetic; detection failures fall back to
	// OS/arch only, unless the context itself was cancelled.
	platform, _, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("preflight cancelled: %w", ctx.Err())
		}
	} else {
		report.Platform = platform
		report.PlatformVersion = version
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("preflight cancelled: %w", ctx.Err())
		}
	} else {
		report.TotalMemory = vm.Total
		report.AvailableMemory = vm.Available
		if vm.Available < MinBuildMemory {
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"available memory %s is below %s; Gradle daemons may be killed",
				formatBytes(vm.Available), formatBytes(MinBuildMemory)))
		}
	}

	if sdkRoot == "" {
		report.Warnings = append(report.Warnings,
			"ANDROID_HOME is not set; apksigner and aapt cannot be located")
	}

	return report, nil
}

// formatBytes renders a byte count in GiB/MiB for operator messages.
func formatBytes(n uint64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
