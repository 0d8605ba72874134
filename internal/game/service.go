package game

// Service is one scored health check. Command is an arbitrary shell
// command run against each team's environment; exit status zero within the
// probe timeout counts as up.
type Service struct {
	Name       string `json:"name"       yaml:"name"`
	Command    string `json:"command"    yaml:"command"`
	Multiplier uint8  `json:"multiplier" yaml:"multiplier"`
}

// NewService creates a Service with the given multiplier.
func NewService(name, command string, multiplier uint8) Service {
	return Service{Name: name, Command: command, Multiplier: multiplier}
}

// IsValid reports whether the service has both a name and a command.
func (s Service) IsValid() bool {
	return s.Name != "" && s.Command != ""
}
