package domain

// State is a step of one apply run. Transitions only move forward.
type State int

const (
	StateInit State = iota
	StateManifestLoaded
	StateCredentialsFetched
	StateSecretsCreated
	StateBindingsApplied
	StateUninstalled
	StateInstalled
	StateReported
	StateFlushed
)

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

var stateNames = [...]string{
	StateInit:               "Init",
	StateManifestLoaded:     "ManifestLoaded",
	StateCredentialsFetched: "CredentialsFetched",
	StateSecretsCreated:     "SecretsCreated",
	StateBindingsApplied:    "BindingsApplied",
	StateUninstalled:        "Uninstalled",
	StateInstalled:          "Installed",
	StateReported:           "Reported",
	StateFlushed:            "Flushed",
}

// Outcome is the final result of a run.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

func (o Outcome) String() string {
	if o == OutcomeSuccess {
		return "Success"
	}
	return "Failure"
}
