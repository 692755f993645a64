// Package variant provides the declarative build-variant catalog for the
// release pipeline.
//
// Variants are declared in a sandboxed Lua file (variants.lua) and matched
// against the active git branch. A variant describes which Gradle module and
// flavor to assemble, where the signed artifact lands in the artifact store,
// and which keystores sign it.
package variant

import "fmt"

// Variant is a single buildable configuration of the application.
// Variants are read-only inputs; the catalog never mutates them after Load.
type Variant struct {
	// Name is a human-readable label. Uniqueness is not enforced.
	Name string

	// Module is the Gradle module to assemble (e.g. "app").
	Module string

	// Flavor is the optional product flavor. Empty means the default flavor.
	Flavor string

	// BranchPattern is a regular expression matched against the active
	// branch name, anchored at the start of the branch (prefix match).
	BranchPattern string

	// OutputFile is the destination filename in the artifact store.
	OutputFile string

	// SignKeys is the ordered, non-empty list of keystore names.
	// The first key is the primary signer; the rest are chained signers.
	SignKeys []string

	// MagiskModule reports whether this variant's signed artifact is
	// repackaged into a Magisk module archive. When the field is absent
	// from the catalog it defaults to Module == "app".
	MagiskModule bool
}

// ConfigError represents a catalog loading or validation error.
type ConfigError struct {
	Message string // User-friendly message
	Detail  string // Technical details
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}
