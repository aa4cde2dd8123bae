package secret

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

const dollarSentinel = "\x00AGRIOPS_SECRET_DOLLAR\x00"

// ExpandEnvStrict expands `${VAR}` references in s.
//
// Semantics:
//   - `$VAR` and `${VAR}` are expanded from the environment.
//   - A `${VAR}` whose VAR is unset is an error naming every missing variable.
//   - `$$` emits a literal `$`.
func ExpandEnvStrict(s string) (string, error) {
	s = strings.ReplaceAll(s, "$$", dollarSentinel)

	var missing []string
	seen := make(map[string]bool)
	for _, match := range envVarPattern.FindAllStringSubmatch(s, -1) {
		key := match[1]
		if _, ok := os.LookupEnv(key); !ok && !seen[key] {
			seen[key] = true
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("secret: missing environment variables: %s", strings.Join(missing, ", "))
	}

	return strings.ReplaceAll(os.ExpandEnv(s), dollarSentinel, "$"), nil
}

// ExpandEnv expands like ExpandEnvStrict but substitutes the empty string for
// unset variables. Configuration files use it so an absent optional key leaves
// its collaborator unconfigured instead of failing startup.
func ExpandEnv(s string) string {
	s = strings.ReplaceAll(s, "$$", dollarSentinel)
	return strings.ReplaceAll(os.ExpandEnv(s), dollarSentinel, "$")
}
