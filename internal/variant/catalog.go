package variant

import (
	"fmt"
	"os"
	"regexp"

	lua "github.com/yuin/gopher-lua"
)

// Load reads and parses the variant catalog at path.
// It returns a *ConfigError if the file is missing, is not valid Lua, or
// declares a variant that fails validation.
func Load(path string) ([]Variant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigError{
				Message: "variant catalog not found",
				Detail:  path,
			}
		}
		return nil, &ConfigError{
			Message: "read variant catalog",
			Detail:  err.Error(),
		}
	}

	return Parse(string(data))
}

// Parse parses a Lua variant catalog from a string.
// This is useful for testing and keeps Load a thin file wrapper.
func Parse(luaCode string) ([]Variant, error) {
	L := newSandboxedVM()
	defer L.Close()

	if err := L.DoString(luaCode); err != nil {
		return nil, &ConfigError{
			Message: "Lua syntax error in variant catalog",
			Detail:  err.Error(),
		}
	}

	return extractVariants(L)
}

// Select returns the variants whose BranchPattern matches branch, anchored
// at the start of the branch name. A pattern that matches only a prefix of
// the branch still selects the variant. Catalog order is preserved; zero
// matches is a valid, empty result.
func Select(variants []Variant, branch string) ([]Variant, error) {
	var selected []Variant
	for _, v := range variants {
		re, err := compilePattern(v.BranchPattern)
		if err != nil {
			return nil, &ConfigError{
				Message: fmt.Sprintf("invalid branch_pattern for variant %q", v.Name),
				Detail:  err.Error(),
			}
		}
		if re.MatchString(branch) {
			selected = append(selected, v)
		}
	}
	return selected, nil
}

// compilePattern compiles a branch pattern anchored at the start of the
// subject. The non-capturing group preserves alternation semantics.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")")
}

// extractVariants extracts the variant list from a Lua state.
// It expects a global "variants" array of tables.
func extractVariants(L *lua.LState) ([]Variant, error) {
	variantsVal := L.GetGlobal("variants")
	if variantsVal.Type() != lua.LTTable {
		return nil, &ConfigError{
			Message: "missing or invalid 'variants' table",
			Detail:  fmt.Sprintf("expected table, got %s", variantsVal.Type()),
		}
	}

	var variants []Variant
	var extractErr error

	variantsVal.(*lua.LTable).ForEach(func(key, value lua.LValue) {
		if extractErr != nil {
			return
		}
		if value.Type() != lua.LTTable {
			extractErr = &ConfigError{
				Message: "invalid variant entry",
				Detail:  fmt.Sprintf("expected table, got %s", value.Type()),
			}
			return
		}

		v, err := extractVariant(value.(*lua.LTable))
		if err != nil {
			extractErr = err
			return
		}
		variants = append(variants, v)
	})

	if extractErr != nil {
		return nil, extractErr
	}
	return variants, nil
}

// extractVariant extracts and validates a single variant record.
func extractVariant(table *lua.LTable) (Variant, error) {
	v := Variant{}

	if nameVal := table.RawGetString("name"); nameVal.Type() == lua.LTString {
		v.Name = nameVal.String()
	}
	if moduleVal := table.RawGetString("module"); moduleVal.Type() == lua.LTString {
		v.Module = moduleVal.String()
	}
	if flavorVal := table.RawGetString("flavor"); flavorVal.Type() == lua.LTString {
		v.Flavor = flavorVal.String()
	}
	if patternVal := table.RawGetString("branch_pattern"); patternVal.Type() == lua.LTString {
		v.BranchPattern = patternVal.String()
	}
	if outputVal := table.RawGetString("output_file"); outputVal.Type() == lua.LTString {
		v.OutputFile = outputVal.String()
	}
	var keysErr error
	if keysVal := table.RawGetString("sign_keys"); keysVal.Type() == lua.LTTable {
		keysVal.(*lua.LTable).ForEach(func(key, value lua.LValue) {
			if keysErr != nil {
				return
			}
			// A mistyped entry must fail loudly: dropping it would
			// silently narrow the signing chain.
			if value.Type() != lua.LTString {
				keysErr = &ConfigError{
					Message: "invalid sign_keys entry",
					Detail: fmt.Sprintf("variant %q: sign_keys must be a list of strings, got %s",
						v.Name, value.Type()),
				}
				return
			}
			v.SignKeys = append(v.SignKeys, value.String())
		})
	}
	if keysErr != nil {
		return Variant{}, keysErr
	}

	// The magisk_module flag replaces the historical 'module == "app"'
	// convention. Catalogs that omit it keep the old behavior; any other
	// type is a catalog error, not a fallback.
	switch mmVal := table.RawGetString("magisk_module"); mmVal.Type() {
	case lua.LTBool:
		v.MagiskModule = bool(mmVal.(lua.LBool))
	case lua.LTNil:
		v.MagiskModule = v.Module == "app"
	default:
		return Variant{}, &ConfigError{
			Message: "invalid magisk_module value",
			Detail: fmt.Sprintf("variant %q: magisk_module must be a boolean, got %s",
				v.Name, mmVal.Type()),
		}
	}

	if err := v.validate(); err != nil {
		return Variant{}, err
	}
	return v, nil
}

// validate checks the invariants every catalog entry must satisfy.
func (v Variant) validate() error {
	missing := ""
	switch {
	case v.Name == "":
		missing = "name"
	case v.Module == "":
		missing = "module"
	case v.BranchPattern == "":
		missing = "branch_pattern"
	case v.OutputFile == "":
		missing = "output_file"
	}
	if missing != "" {
		return &ConfigError{
			Message: "variant validation failed",
			Detail:  fmt.Sprintf("variant %q: missing required field %q", v.Name, missing),
		}
	}

	if len(v.SignKeys) == 0 {
		return &ConfigError{
			Message: "variant validation failed",
			Detail:  fmt.Sprintf("variant %q: sign_keys must not be empty", v.Name),
		}
	}

	if _, err := compilePattern(v.BranchPattern); err != nil {
		return &ConfigError{
			Message: "variant validation failed",
			Detail:  fmt.Sprintf("variant %q: branch_pattern does not compile: %v", v.Name, err),
		}
	}

	return nil
}
