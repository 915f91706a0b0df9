package variant

// Snapshot is the versioned bundle under exploration: file contents,
// dependency list, flat config, and the architecture graph. Snapshots
// attached to variants are treated as immutable; anything that needs to
// change one clones it first. Sibling variants produced by a branch share
// the parent's snapshot pointer until a directive is applied to one of them.
type Snapshot struct {
	Files        map[string]string `yaml:"files" json:"files"`
	Dependencies []string          `yaml:"dependencies" json:"dependencies"`
	Config       map[string]string `yaml:"config" json:"config"`
	Architecture Architecture      `yaml:"architecture" json:"architecture"`
	Version      string            `yaml:"version" json:"version"`
}

// Architecture is the component graph of a snapshot.
type Architecture struct {
	Components  []Component  `yaml:"components" json:"components"`
	Connections []Connection `yaml:"connections" json:"connections"`
	Patterns    []string     `yaml:"patterns" json:"patterns"`
	Constraints []string     `yaml:"constraints" json:"constraints"`
}

// Component is one architecture node.
type Component struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"`
}

// Connection is a directed edge between two component ids.
type Connection struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
	Kind string `yaml:"kind" json:"kind"`
}

// Clone returns a structurally independent deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{Version: s.Version}
	if s.Files != nil {
		out.Files = make(map[string]string, len(s.Files))
		for k, v := range s.Files {
			out.Files[k] = v
		}
	}
	if s.Dependencies != nil {
		out.Dependencies = append([]string(nil), s.Dependencies...)
	}
	if s.Config != nil {
		out.Config = make(map[string]string, len(s.Config))
		for k, v := range s.Config {
			out.Config[k] = v
		}
	}
	out.Architecture = Architecture{
		Components:  append([]Component(nil), s.Architecture.Components...),
		Connections: append([]Connection(nil), s.Architecture.Connections...),
		Patterns:    append([]string(nil), s.Architecture.Patterns...),
		Constraints: append([]string(nil), s.Architecture.Constraints...),
	}
	return out
}
