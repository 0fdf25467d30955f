package engine

import (
	"github.com/jfarrimo/frycook/pkg/environment"
	"github.com/jfarrimo/frycook/pkg/errdefs"
)

// ResolveTargets expands target tokens into an ordered list of computer names.
//
// Each token is tried as a computer first, so a computer shadows a group of
// the same name, and then as a group, which expands to its declared computer
// list in order. Tokens are processed in the given order and the result is
// not deduplicated: a computer named directly and again through a group is
// listed twice. The first token matching neither, or a group naming an
// undefined computer, fails with an InvalidTargetError.
func ResolveTargets(env *environment.Environment, targets []string) ([]string, error) {
	hosts := make([]string, 0, len(targets))

	for _, token := range targets {
		if env.HasComputer(token) {
			hosts = append(hosts, token)
			continue
		}

		if env.HasGroup(token) {
			members, err := GroupHosts(env, token)
			if err != nil {
				return nil, err
			}
			hosts = append(hosts, members...)
			continue
		}

		return nil, errdefs.NewInvalidTargetError(token)
	}

	return hosts, nil
}

// GroupHosts returns a group's computers in declared order. Every member must
// be a defined computer; the first one that is not fails with an
// InvalidTargetError staged at groups.<name>.
func GroupHosts(env *environment.Environment, group string) ([]string, error) {
	members, err := env.GroupComputers(group)
	if err != nil {
		return nil, errdefs.NewConfigLoadError("environment", err).WithSubject("groups." + group)
	}
	for _, member := range members {
		if !env.HasComputer(member) {
			return nil, errdefs.NewInvalidTargetError(member).WithStage("groups." + group)
		}
	}
	return members, nil
}

// DedupeHosts removes repeated hosts, keeping the first occurrence.
func DedupeHosts(hosts []string) []string {
	seen := make(map[string]bool, len(hosts))
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}
