package transport

import (
	"os"
	"strings"
)

// Role is the logical name a caller uses for a dependency.
type Role string

const (
	RoleAuthenticate Role = "AUTHENTICATE"
	RoleCollect      Role = "COLLECT"
	RoleEmbed        Role = "EMBED"
)

// Roles lists every role resolved at start-up.
var Roles = []Role{RoleAuthenticate, RoleCollect, RoleEmbed}

// Targets maps roles to deployment-specific function names. It is built once
// at start-up and only read afterwards.
type Targets map[Role]Target

// TargetsFromEnv resolves each role from <ROLE>_FUNCTION_NAME. Unset roles
// resolve to the empty target and fail on first use.
func TargetsFromEnv() Targets {
	t := make(Targets, len(Roles))
	for _, r := range Roles {
		t[r] = Target(strings.TrimSpace(os.Getenv(EnvName(r))))
	}
	return t
}

// EnvName returns the environment variable holding the target for r.
func EnvName(r Role) string {
	return string(r) + "_FUNCTION_NAME"
}

// Resolve returns the target for r, or "" when it is not configured.
func (t Targets) Resolve(r Role) Target {
	return t[r]
}
