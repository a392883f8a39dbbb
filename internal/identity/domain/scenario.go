package domain

// Scenario classifies a login attempt by where matching identity data
// exists and whether it agrees.
type Scenario string

const (
	ScenarioOffline                    Scenario = "OFFLINE"
	ScenarioLocalOnlyRemoteUnreachable Scenario = "LOCAL_ONLY_REMOTE_UNREACHABLE"
	ScenarioNoDataAccessible           Scenario = "NO_DATA_ACCESSIBLE"
	ScenarioRemoteOnly                 Scenario = "REMOTE_ONLY"
	ScenarioLocalOnly                  Scenario = "LOCAL_ONLY"
	ScenarioBothPresentConsistent      Scenario = "BOTH_PRESENT_CONSISTENT"
	ScenarioDataConflict               Scenario = "DATA_CONFLICT"
	ScenarioCredentialConflict         Scenario = "CREDENTIAL_CONFLICT"
	ScenarioDifferentIdentities        Scenario = "DIFFERENT_IDENTITIES"
	ScenarioNotFound                   Scenario = "NOT_FOUND"
)

// RequiresResolution is true for the scenarios that block login until the
// caller merges the records.
func (s Scenario) RequiresResolution() bool {
	return s == ScenarioDataConflict || s == ScenarioCredentialConflict
}

// Field names used in conflicts and resolutions.
const (
	FieldUsername         = "username"
	FieldPhone            = "phone"
	FieldName             = "name"
	FieldRole             = "role"
	FieldSecurityQuestion = "security_question"
	FieldAuthMethod       = "auth_method"
)

type Conflict struct {
	Field  string `json:"field"`
	Local  string `json:"local"`
	Remote string `json:"remote"`
}

type Choice string

const (
	ChoiceKeepLocal  Choice = "keep_local"
	ChoiceKeepRemote Choice = "keep_remote"
	ChoiceCustom     Choice = "custom"
)

type Resolution struct {
	Field  string `json:"field"`
	Choice Choice `json:"choice"`
	Value  string `json:"value,omitempty"`
}

// FieldValue reads a comparable profile field by name.
func (i Identity) FieldValue(field string) (string, bool) {
	switch field {
	case FieldUsername:
		return i.Username, true
	case FieldPhone:
		return i.Phone, true
	case FieldName:
		return i.Name, true
	case FieldRole:
		return i.Role, true
	case FieldSecurityQuestion:
		return i.SecurityQuestion, true
	case FieldAuthMethod:
		return string(i.AuthMethod), true
	}
	return "", false
}

// SetFieldValue is the inverse of FieldValue.
func (i *Identity) SetFieldValue(field, value string) bool {
	switch field {
	case FieldUsername:
		i.Username = value
	case FieldPhone:
		i.Phone = value
	case FieldName:
		i.Name = value
	case FieldRole:
		i.Role = value
	case FieldSecurityQuestion:
		i.SecurityQuestion = value
	case FieldAuthMethod:
		i.AuthMethod = AuthMethod(value)
	default:
		return false
	}
	return true
}
