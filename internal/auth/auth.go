package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// AllProjects grants an identity access to every project.
const AllProjects = "*"

// Identity is the verified caller. Projects lists the project ids whose
// databases the caller owns.
type Identity struct {
	Owner    string
	Projects []string
}

func (i Identity) AllowsProject(projectID string) bool {
	for _, candidate := range i.Projects {
		if candidate == AllProjects || candidate == projectID {
			return true
		}
	}
	return false
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses comma separated key:owner:project|project
// entries.
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	entries := strings.Split(spec, ",")
	for _, entry := range entries {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:owner:project|project", entry)
		}
		key := strings.TrimSpace(parts[0])
		owner := strings.TrimSpace(parts[1])
		if key == "" || owner == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key/owner", entry)
		}
		if _, exists := validator.keys[key]; exists {
			return nil, fmt.Errorf("invalid static key entry %q: duplicate key", entry)
		}
		projectParts := strings.Split(strings.TrimSpace(parts[2]), "|")
		projects := make([]string, 0, len(projectParts))
		for _, project := range projectParts {
			project = strings.TrimSpace(project)
			if project == "" {
				continue
			}
			projects = append(projects, project)
		}
		if len(projects) == 0 {
			return nil, fmt.Errorf("invalid static key entry %q: at least one project is required", entry)
		}
		sort.Strings(projects)
		validator.keys[key] = Identity{Owner: owner, Projects: projects}
	}

	return validator, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}
