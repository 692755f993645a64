package magisk

import (
	"fmt"
	"strings"

	"github.com/sekaiacg/apkforge/internal/badging"
)

// module.prop identity fields. Version fields come from the APK itself.
const (
	moduleID     = "openeuicc-sekaiacg"
	moduleName   = "OpenEUICC"
	moduleAuthor = "Peter Cai, Modifier by @sekaiacg"
)

var moduleDescription = strings.Join([]string{
	"OpenEUICC provides system-level eSIM integration.",
	"Source Code: https://gitea.angry.im/PeterCxy/OpenEUICC.",
	"Magisk Module: https://github.com/sekaiacg/magisk-openeuicc.",
}, " ")

// moduleProp renders module.prop: one key=value per line, no blank lines,
// keys in the order Magisk documents them.
func moduleProp(version *badging.VersionInfo) string {
	entries := []struct {
		key   string
		value string
	}{
		{"id", moduleID},
		{"name", moduleName},
		{"version", version.VersionName},
		{"versionCode", fmt.Sprintf("%d", version.VersionCode)},
		{"author", moduleAuthor},
		{"description", moduleDescription},
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s=%s\n", e.key, e.value)
	}
	return b.String()
}

// uninstallScript renders uninstall.sh: a single pm invocation removing the
// packaged application, with values shell-quoted.
func uninstallScript(packageName string) string {
	return strings.Join([]string{"pm", "uninstall", shellQuote(packageName)}, " ")
}

// shellQuote quotes s for a POSIX shell command line. Plain package names
// pass through unquoted; anything with metacharacters gets single quotes.
func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'\\$&;|<>()`*?#~={}[]!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
