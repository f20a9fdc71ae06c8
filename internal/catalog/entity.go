// Package catalog models the parts of a catalog entity the deployer consumes and
// provides a client for looking entities up by reference.
package catalog

import (
	"fmt"
	"strings"
)

const (
	DefaultNamespace = "default"
	DefaultKind      = "component"
)

// Annotation keys read from entity metadata.
const (
	AnnotationTarget            = "catalog-deployer.io/target"
	AnnotationDeployBuildspec   = "catalog-deployer.io/deploy-buildspec"
	AnnotationUpdateBuildspec   = "catalog-deployer.io/update-buildspec"
	AnnotationTeardownBuildspec = "catalog-deployer.io/teardown-buildspec"
	AnnotationSourceLocation    = "backstage.io/source-location"
	AnnotationManagedByLocation = "backstage.io/managed-by-location"
)

// Metadata holds the identifying fields of an entity
type Metadata struct {
	Name        string            `json:"name" yaml:"name"`
	Namespace   string            `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	UID         string            `json:"uid,omitempty" yaml:"uid,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// Entity is a catalog-registered unit such as a component or service
type Entity struct {
	APIVersion string   `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
	Kind       string   `json:"kind" yaml:"kind"`
	Metadata   Metadata `json:"metadata" yaml:"metadata"`
}

// Namespace returns the entity namespace, defaulting to DefaultNamespace
func (e Entity) Namespace() string {
	if e.Metadata.Namespace == "" {
		return DefaultNamespace
	}
	return e.Metadata.Namespace
}

// Annotation returns the value of the named annotation and whether it was set
func (e Entity) Annotation(key string) (string, bool) {
	v, ok := e.Metadata.Annotations[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Ref returns the reference identifying this entity
func (e Entity) Ref() Ref {
	return Ref{
		Kind:      e.Kind,
		Namespace: e.Namespace(),
		Name:      e.Metadata.Name,
	}
}

// Ref identifies an entity by kind, namespace and name
type Ref struct {
	Kind      string
	Namespace string
	Name      string
}

// String returns the stable reference form kind:namespace/name, with kind and
// namespace lower-cased.
func (r Ref) String() string {
	namespace := r.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return fmt.Sprintf("%s:%s/%s", strings.ToLower(r.Kind), strings.ToLower(namespace), r.Name)
}

// ParseRef parses [kind:][namespace/]name. Kind defaults to DefaultKind and
// namespace to DefaultNamespace.
func ParseRef(s string) (Ref, error) {
	ref := Ref{Kind: DefaultKind, Namespace: DefaultNamespace}

	rest := strings.TrimSpace(s)
	if kind, after, ok := strings.Cut(rest, ":"); ok {
		if kind == "" {
			return Ref{}, fmt.Errorf("invalid entity reference %q: empty kind", s)
		}
		ref.Kind = kind
		rest = after
	}
	if namespace, after, ok := strings.Cut(rest, "/"); ok {
		if namespace == "" {
			return Ref{}, fmt.Errorf("invalid entity reference %q: empty namespace", s)
		}
		ref.Namespace = namespace
		rest = after
	}
	if rest == "" || strings.ContainsAny(rest, ":/") {
		return Ref{}, fmt.Errorf("invalid entity reference %q", s)
	}
	ref.Name = rest

	return ref, nil
}
