// Package mutate turns a base snapshot plus a list of variation directives
// into a new snapshot. Application is atomic: all work happens on a clone,
// and any error returns before the caller ever sees a partially mutated
// result.
package mutate

import (
	"fmt"
	"regexp"
	"strings"

	"superpose/internal/variant"
)

// DirectiveType selects which part of the snapshot a directive touches.
type DirectiveType string

const (
	DirectiveArchitecture DirectiveType = "architecture"
	DirectiveDependency   DirectiveType = "dependency"
	DirectiveConfig       DirectiveType = "config"
	DirectiveCode         DirectiveType = "code"
)

// Directive is one proposed modification. Exactly the payload matching Type
// is consulted; the rest are ignored.
type Directive struct {
	Type         DirectiveType       `yaml:"type" json:"type"`
	Architecture *ArchitectureChange `yaml:"architecture,omitempty" json:"architecture,omitempty"`
	Dependency   *DependencyChange   `yaml:"dependency,omitempty" json:"dependency,omitempty"`
	Config       map[string]string   `yaml:"config,omitempty" json:"config,omitempty"`
	Code         *CodeChange         `yaml:"code,omitempty" json:"code,omitempty"`
}

// ArchitectureChange adds and removes components. Connections touching a
// removed component are pruned.
type ArchitectureChange struct {
	Add    []variant.Component `yaml:"add,omitempty" json:"add,omitempty"`
	Remove []string            `yaml:"remove,omitempty" json:"remove,omitempty"`
}

// DependencyChange edits the dependency list. Entries are "name@version"
// strings. Removes run first, then adds, then upgrades, so an explicit add
// survives a remove and an upgrade always rewrites the name-matching entry
// last.
type DependencyChange struct {
	Remove  []string `yaml:"remove,omitempty" json:"remove,omitempty"`
	Add     []string `yaml:"add,omitempty" json:"add,omitempty"`
	Upgrade []string `yaml:"upgrade,omitempty" json:"upgrade,omitempty"`
}

// EditOp is one code edit operation.
type EditOp string

const (
	EditReplace     EditOp = "replace"      // regex substitution
	EditInsertAfter EditOp = "insert-after" // insert Text after first match
	EditPrepend     EditOp = "prepend"      // prepend Text; creates the file
)

// CodeEdit is a single edit in an ordered chain. Replace and insert-after
// modify an existing file and fail with ValidationError when it is absent;
// prepend creates the file when needed.
type CodeEdit struct {
	Op      EditOp `yaml:"op" json:"op"`
	File    string `yaml:"file" json:"file"`
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Text    string `yaml:"text" json:"text"`
}

// CodeChange is an ordered edit list. Each edit consumes the previous
// edit's output.
type CodeChange struct {
	Edits []CodeEdit `yaml:"edits" json:"edits"`
}

// ValidationError reports a malformed directive.
type ValidationError struct {
	Directive DirectiveType
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s directive: %s", e.Directive, e.Message)
}

// Apply builds a new snapshot from base and the directives, in order. The
// base is deep-copied before any mutation; on error the returned snapshot is
// nil and base is untouched.
func Apply(base *variant.Snapshot, directives []Directive) (*variant.Snapshot, error) {
	if base == nil {
		return nil, &ValidationError{Message: "nil base snapshot"}
	}

	out := base.Clone()
	for i, d := range directives {
		var err error
		switch d.Type {
		case DirectiveArchitecture:
			err = applyArchitecture(out, d.Architecture)
		case DirectiveDependency:
			err = applyDependency(out, d.Dependency)
		case DirectiveConfig:
			applyConfig(out, d.Config)
		case DirectiveCode:
			err = applyCode(out, d.Code)
		default:
			err = &ValidationError{Directive: d.Type, Message: "unknown directive type"}
		}
		if err != nil {
			return nil, fmt.Errorf("directive %d: %w", i, err)
		}
	}
	return out, nil
}

func applyArchitecture(s *variant.Snapshot, c *ArchitectureChange) error {
	if c == nil {
		return &ValidationError{Directive: DirectiveArchitecture, Message: "missing payload"}
	}

	arch := &s.Architecture
	arch.Components = append(arch.Components, c.Add...)

	if len(c.Remove) == 0 {
		return nil
	}
	removed := make(map[string]bool, len(c.Remove))
	for _, id := range c.Remove {
		removed[id] = true
	}

	kept := arch.Components[:0]
	for _, comp := range arch.Components {
		if !removed[comp.ID] {
			kept = append(kept, comp)
		}
	}
	arch.Components = kept

	// Prune connections whose endpoint no longer exists.
	conns := arch.Connections[:0]
	for _, conn := range arch.Connections {
		if !removed[conn.From] && !removed[conn.To] {
			conns = append(conns, conn)
		}
	}
	arch.Connections = conns
	return nil
}

func applyDependency(s *variant.Snapshot, c *DependencyChange) error {
	if c == nil {
		return &ValidationError{Directive: DirectiveDependency, Message: "missing payload"}
	}

	deps := s.Dependencies

	for _, rm := range c.Remove {
		kept := deps[:0]
		for _, d := range deps {
			if d != rm {
				kept = append(kept, d)
			}
		}
		deps = kept
	}

	deps = append(deps, c.Add...)

	// Upgrades rewrite the entry whose name (the part before '@') matches.
	for _, up := range c.Upgrade {
		name := depName(up)
		for i, d := range deps {
			if depName(d) == name {
				deps[i] = up
			}
		}
	}

	s.Dependencies = deps
	return nil
}

func depName(dep string) string {
	if i := strings.Index(dep, "@"); i >= 0 {
		return dep[:i]
	}
	return dep
}

func applyConfig(s *variant.Snapshot, c map[string]string) {
	if s.Config == nil {
		s.Config = make(map[string]string, len(c))
	}
	for k, v := range c {
		s.Config[k] = v
	}
}

func applyCode(s *variant.Snapshot, c *CodeChange) error {
	if c == nil {
		return &ValidationError{Directive: DirectiveCode, Message: "missing payload"}
	}
	if s.Files == nil {
		s.Files = make(map[string]string)
	}

	for i, e := range c.Edits {
		content, exists := s.Files[e.File]
		switch e.Op {
		case EditReplace:
			if !exists {
				return &ValidationError{Directive: DirectiveCode,
					Message: fmt.Sprintf("edit %d: replace targets missing file %q", i, e.File)}
			}
			re, err := regexp.Compile(e.Pattern)
			if err != nil {
				return &ValidationError{Directive: DirectiveCode,
					Message: fmt.Sprintf("edit %d: bad pattern %q: %v", i, e.Pattern, err)}
			}
			s.Files[e.File] = re.ReplaceAllString(content, e.Text)
		case EditInsertAfter:
			if !exists {
				return &ValidationError{Directive: DirectiveCode,
					Message: fmt.Sprintf("edit %d: insert-after targets missing file %q", i, e.File)}
			}
			idx := strings.Index(content, e.Pattern)
			if idx < 0 {
				return &ValidationError{Directive: DirectiveCode,
					Message: fmt.Sprintf("edit %d: pattern %q not found in %q", i, e.Pattern, e.File)}
			}
			at := idx + len(e.Pattern)
			s.Files[e.File] = content[:at] + e.Text + content[at:]
		case EditPrepend:
			s.Files[e.File] = e.Text + content
		default:
			return &ValidationError{Directive: DirectiveCode,
				Message: fmt.Sprintf("edit %d: unknown op %q", i, e.Op)}
		}
	}
	return nil
}
