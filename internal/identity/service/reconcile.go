package service

import (
	"github.com/aussiebroadwan/idsync/internal/identity/domain"
)

type ClassifyInput struct {
	Local     *domain.Identity
	Remote    *domain.Identity
	Connected bool
	Reachable bool
	LoginKey  string
	KeyKind   domain.KeyKind
}

type Classification struct {
	Scenario  domain.Scenario   `json:"scenario"`
	Conflicts []domain.Conflict `json:"conflicts,omitempty"`
}

// comparedFields are checked in this order when both records share an
// email. Username is handled separately because it decides the scenario.
var comparedFields = []string{
	domain.FieldPhone,
	domain.FieldName,
	domain.FieldRole,
	domain.FieldSecurityQuestion,
	domain.FieldAuthMethod,
}

// Classify maps what is known about a login attempt to exactly one
// scenario. It has no side effects.
func Classify(in ClassifyInput) Classification {
	local, remote := in.Local, in.Remote

	switch {
	case !in.Connected:
		return Classification{Scenario: domain.ScenarioOffline}
	case !in.Reachable && local != nil:
		return Classification{Scenario: domain.ScenarioLocalOnlyRemoteUnreachable}
	case !in.Reachable:
		return Classification{Scenario: domain.ScenarioNoDataAccessible}
	case local == nil && remote == nil:
		return Classification{Scenario: domain.ScenarioNotFound}
	case local == nil:
		return Classification{Scenario: domain.ScenarioRemoteOnly}
	case remote == nil:
		return Classification{Scenario: domain.ScenarioLocalOnly}
	}

	if !domain.SameEmail(local.Email, remote.Email) {
		return Classification{Scenario: domain.ScenarioDifferentIdentities}
	}

	var conflicts []domain.Conflict
	usernameDiffers := domain.FoldKey(local.Username) != domain.FoldKey(remote.Username)
	if usernameDiffers {
		conflicts = append(conflicts, domain.Conflict{
			Field:  domain.FieldUsername,
			Local:  local.Username,
			Remote: remote.Username,
		})
	}
	for _, f := range comparedFields {
		lv, _ := local.FieldValue(f)
		rv, _ := remote.FieldValue(f)
		if lv != rv {
			conflicts = append(conflicts, domain.Conflict{Field: f, Local: lv, Remote: rv})
		}
	}

	switch {
	case usernameDiffers:
		return Classification{Scenario: domain.ScenarioCredentialConflict, Conflicts: conflicts}
	case len(conflicts) > 0:
		return Classification{Scenario: domain.ScenarioDataConflict, Conflicts: conflicts}
	default:
		return Classification{Scenario: domain.ScenarioBothPresentConsistent}
	}
}
