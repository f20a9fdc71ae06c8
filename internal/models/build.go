package models

import (
	"strings"

	"github.com/savaki/catalog-deployer/internal/errors"
)

// Action is a build lifecycle operation requested for an entity
type Action string

const (
	ActionDeploy   Action = "deploy"
	ActionUpdate   Action = "update"
	ActionTeardown Action = "teardown" // terminal for the entity's resources
)

// Actions lists every supported action
var Actions = []Action{ActionDeploy, ActionUpdate, ActionTeardown}

// ParseAction parses an action name, ignoring case
func ParseAction(s string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(s)))
	switch action {
	case ActionDeploy, ActionUpdate, ActionTeardown:
		return action, nil
	default:
		return "", errors.NewInputError("unknown action %q, expected one of deploy, update, teardown", s)
	}
}

func (a Action) String() string {
	return string(a)
}
