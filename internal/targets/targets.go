// Package targets maps an entity's declared deployment target to the concrete
// account, region and build project it deploys through.
package targets

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/savaki/catalog-deployer/internal/catalog"
	"github.com/savaki/catalog-deployer/internal/errors"
	"gopkg.in/yaml.v3"
)

// DefaultName is the name of the target registered when none are configured explicitly
const DefaultName = "default"

// Target is a deployment destination
type Target struct {
	Name        string `json:"name" yaml:"name"`
	AccountID   string `json:"account_id" yaml:"accountId"`
	Region      string `json:"region" yaml:"region"`
	ProjectName string `json:"project_name" yaml:"projectName"`
	RoleARN     string `json:"role_arn,omitempty" yaml:"roleArn,omitempty"` // assumed for cross-account builds
}

// Validate checks that all required fields are populated
func (t Target) Validate() error {
	var missing []string
	if t.Name == "" {
		missing = append(missing, "name")
	}
	if t.AccountID == "" {
		missing = append(missing, "accountId")
	}
	if t.Region == "" {
		missing = append(missing, "region")
	}
	if t.ProjectName == "" {
		missing = append(missing, "projectName")
	}
	if len(missing) > 0 {
		return fmt.Errorf("target %q missing %s", t.Name, strings.Join(missing, ", "))
	}
	return nil
}

// Registry is an immutable set of targets, looked up by name
type Registry struct {
	targets []Target
}

// NewRegistry validates targets and returns a registry holding a copy of them
func NewRegistry(targets ...Target) (*Registry, error) {
	seen := map[string]bool{}
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate target %q", t.Name)
		}
		seen[t.Name] = true
	}
	return &Registry{targets: slices.Clone(targets)}, nil
}

// Targets returns the registered targets in registration order
func (r *Registry) Targets() []Target {
	return slices.Clone(r.targets)
}

// Find returns the target with the given name
func (r *Registry) Find(name string) (Target, bool) {
	for _, t := range r.targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// Resolve returns the target named by the entity's target annotation
func (r *Registry) Resolve(entity catalog.Entity) (Target, error) {
	name, ok := entity.Annotation(catalog.AnnotationTarget)
	if !ok {
		return Target{}, errors.NewInputError("missing target annotation %s on %s", catalog.AnnotationTarget, entity.Ref())
	}

	target, ok := r.Find(name)
	if !ok {
		return Target{}, errors.NewInputError("unknown target %q for %s", name, entity.Ref())
	}

	return target, nil
}

type file struct {
	Targets []Target `yaml:"targets"`
}

// Parse reads a YAML document of the form:
//
//	targets:
//	  - name: default
//	    accountId: "123456789012"
//	    region: us-west-2
//	    projectName: catalog-deployer
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse targets: %w", err)
	}
	if len(f.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined")
	}
	return NewRegistry(f.Targets...)
}

// Load reads a targets file from disk
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file %s: %w", path, err)
	}
	return Parse(data)
}
