package types

import "os"

type OutputStyle int

const (
	StyleHuman OutputStyle = iota
	StyleHumanVerbose
	StyleMachineJSON
)

// Initiator stores information about who started a run - a user at a
// terminal, a scheduler, or a CI pipeline
type Initiator struct {
	Type   string `json:"type" yaml:"type"`     // "user", "service", "ci"
	Id     string `json:"id" yaml:"id"`         // "alice", "runner-01234"
	Tenant string `json:"tenant" yaml:"tenant"` // host the run was started on
}

// LocalInitiator describes the current user on the current host.
func LocalInitiator() Initiator {
	host, _ := os.Hostname()

	initiator := Initiator{
		Type:   "user",
		Id:     os.Getenv("USER"),
		Tenant: host,
	}
	if os.Getenv("CI") != "" {
		initiator.Type = "ci"
	}
	return initiator
}
