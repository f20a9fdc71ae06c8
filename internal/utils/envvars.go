package utils

import (
	"slices"

	"github.com/savaki/catalog-deployer/internal/catalog"
	"github.com/savaki/catalog-deployer/internal/paramstore"
	"github.com/savaki/catalog-deployer/internal/targets"
)

// Names of the variables every build receives regardless of stored parameters.
const (
	EnvAccountID = "AWS_ACCOUNT_ID"
	EnvRegion    = "AWS_REGION"
	EnvEntityUID = "ENTITY_UID"
	EnvEntityRef = "ENTITY_REF"
)

// Overlay returns the variables derived from the target and entity, in the
// order they are applied.
func Overlay(target targets.Target, entity catalog.Entity) []paramstore.EnvironmentVariable {
	return []paramstore.EnvironmentVariable{
		{Name: EnvAccountID, Value: target.AccountID},
		{Name: EnvRegion, Value: target.Region},
		{Name: EnvEntityUID, Value: entity.Metadata.UID},
		{Name: EnvEntityRef, Value: entity.Ref().String()},
	}
}

// MergeEnvironment applies the overlay to the stored variables. An existing
// variable with an overlay name has its value replaced in place, otherwise the
// overlay variable is appended. The order of stored variables is preserved and
// stored itself is not modified.
func MergeEnvironment(stored []paramstore.EnvironmentVariable, target targets.Target, entity catalog.Entity) []paramstore.EnvironmentVariable {
	return MergeVariables(stored, Overlay(target, entity)...)
}

// MergeVariables merges overrides into base with later values winning. Names
// are unique in the result: a repeated name keeps the position of its first
// occurrence and the value of its last.
func MergeVariables(base []paramstore.EnvironmentVariable, overrides ...paramstore.EnvironmentVariable) []paramstore.EnvironmentVariable {
	results := make([]paramstore.EnvironmentVariable, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base)+len(overrides))

	for _, v := range slices.Concat(base, overrides) {
		if i, ok := index[v.Name]; ok {
			results[i].Value = v.Value
			continue
		}
		index[v.Name] = len(results)
		results = append(results, v)
	}

	return results
}
