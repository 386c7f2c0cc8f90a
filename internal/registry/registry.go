// Package registry holds the validated command table the CLI is generated
// from. Builtin packages and the discovery loader both feed it; the cobra
// layer mounts whatever the registry accepted.
package registry

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/Miyamura80/CLI-Template/internal/invocation"
)

// Kind distinguishes the two command shapes the dispatcher understands.
type Kind string

const (
	// KindLeaf is a directly executable command with a single entry point.
	KindLeaf Kind = "leaf"
	// KindGroup is a named collection of sub-commands with no entry point of
	// its own.
	KindGroup Kind = "group"
)

// SourceBuiltin marks specs compiled into the binary rather than discovered
// from the commands directory.
const SourceBuiltin = "builtin"

var (
	ErrDuplicateCommand = errors.New("duplicate command")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrInvalidSpec      = errors.New("invalid command spec")
	ErrNotDispatchable  = errors.New("command cannot be dispatched")
)

// EntryPoint is the single callable a leaf command exposes. Arguments are the
// positional arguments remaining after flag parsing, or the raw remainder for
// pass-through leaves.
type EntryPoint func(*invocation.Context, []string) error

// CommandSpec describes one command unit. A leaf carries an entry point and
// optional flag declarations; a group carries children and nothing runnable.
type CommandSpec struct {
	Name        string
	Kind        Kind
	Summary     string
	Description string

	// Source records where the unit came from, SourceBuiltin or the path of
	// the discovered unit file. Used in registration error messages.
	Source string

	// PassThrough disables flag parsing for the leaf; the entry point
	// receives every token after the command name verbatim.
	PassThrough bool

	Flags func(*pflag.FlagSet)
	Run   EntryPoint

	Children []*CommandSpec
}

// Registry is the root scope of the command tree.
type Registry struct {
	commands map[string]*CommandSpec
}

func New() *Registry {
	return &Registry{commands: map[string]*CommandSpec{}}
}

// Register validates a spec and adds it to the root scope. Names are unique
// per scope, compared case-sensitively; a clash reports ErrDuplicateCommand
// naming both origins. Validation walks nested groups so a malformed or
// colliding child is rejected before anything is mounted.
func (r *Registry) Register(spec *CommandSpec) error {
	if err := validateSpec(spec, "root"); err != nil {
		return err
	}
	if existing, ok := r.commands[spec.Name]; ok {
		return duplicateError(spec, existing, "root")
	}
	r.commands[spec.Name] = spec
	return nil
}

// Specs returns the root commands sorted by name.
func (r *Registry) Specs() []*CommandSpec {
	specs := make([]*CommandSpec, 0, len(r.commands))
	for _, spec := range r.commands {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Resolve walks the tree along path and returns the deepest spec reached plus
// the unconsumed tokens. Descent continues only through groups; tokens beyond
// a leaf are its arguments. A token that matches nothing in the current scope
// is an unknown command.
func (r *Registry) Resolve(path []string) (*CommandSpec, []string, error) {
	if len(path) == 0 {
		return nil, nil, fmt.Errorf("%w: no command specified", ErrUnknownCommand)
	}

	spec, ok := r.commands[path[0]]
	if !ok {
		return nil, nil, unknownError(path[0], "")
	}

	consumed := path[0]
	rest := path[1:]
	for len(rest) > 0 && spec.Kind == KindGroup {
		child := childNamed(spec, rest[0])
		if child == nil {
			return nil, nil, unknownError(rest[0], consumed)
		}
		consumed = consumed + " " + rest[0]
		spec = child
		rest = rest[1:]
	}
	return spec, rest, nil
}

// Dispatch resolves path and invokes the resulting command. A leaf runs its
// entry point with the invocation context and args; a group ignores args,
// writes its synopsis to out, and succeeds without doing anything else.
func (r *Registry) Dispatch(inv *invocation.Context, path, args []string, out io.Writer) error {
	spec, rest, err := r.Resolve(path)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		args = append(append([]string{}, rest...), args...)
	}

	switch spec.Kind {
	case KindLeaf:
		if spec.Run == nil {
			return fmt.Errorf("%w: %q has no entry point", ErrNotDispatchable, spec.Name)
		}
		return spec.Run(inv, args)
	case KindGroup:
		return WriteSynopsis(out, strings.Join(path, " "), spec)
	default:
		return fmt.Errorf("%w: %q has kind %q", ErrNotDispatchable, spec.Name, spec.Kind)
	}
}

// WriteSynopsis renders the group help shown when a group is invoked without
// a sub-command.
func WriteSynopsis(out io.Writer, path string, spec *CommandSpec) error {
	if spec.Summary != "" {
		fmt.Fprintf(out, "%s\n\n", spec.Summary)
	}
	fmt.Fprintf(out, "Usage:\n  mycli %s <command>\n", path)

	children := append([]*CommandSpec{}, spec.Children...)
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	if len(children) > 0 {
		fmt.Fprintf(out, "\nCommands:\n")
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, child := range children {
			fmt.Fprintf(tw, "  %s\t%s\n", child.Name, child.Summary)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func childNamed(group *CommandSpec, name string) *CommandSpec {
	for _, child := range group.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

func validateSpec(spec *CommandSpec, scope string) error {
	if spec == nil {
		return fmt.Errorf("%w: nil spec in scope %q", ErrInvalidSpec, scope)
	}
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("%w: unnamed command in scope %q", ErrInvalidSpec, scope)
	}
	if strings.ContainsAny(spec.Name, " \t") {
		return fmt.Errorf("%w: command name %q contains whitespace", ErrInvalidSpec, spec.Name)
	}

	switch spec.Kind {
	case KindLeaf:
		if spec.Run == nil {
			return fmt.Errorf("%w: leaf %q has no entry point", ErrInvalidSpec, spec.Name)
		}
		if len(spec.Children) > 0 {
			return fmt.Errorf("%w: leaf %q declares sub-commands", ErrInvalidSpec, spec.Name)
		}
	case KindGroup:
		if spec.Run != nil {
			return fmt.Errorf("%w: group %q declares an entry point", ErrInvalidSpec, spec.Name)
		}
		seen := map[string]*CommandSpec{}
		for _, child := range spec.Children {
			if err := validateSpec(child, spec.Name); err != nil {
				return err
			}
			if existing, ok := seen[child.Name]; ok {
				return duplicateError(child, existing, spec.Name)
			}
			seen[child.Name] = child
		}
	default:
		return fmt.Errorf("%w: command %q has kind %q", ErrInvalidSpec, spec.Name, spec.Kind)
	}
	return nil
}

func duplicateError(spec, existing *CommandSpec, scope string) error {
	return fmt.Errorf("%w %q in scope %q (%s collides with %s)",
		ErrDuplicateCommand, spec.Name, scope, describeSource(spec), describeSource(existing))
}

func unknownError(name, parent string) error {
	if parent == "" {
		return fmt.Errorf("%w %q", ErrUnknownCommand, name)
	}
	return fmt.Errorf("%w %q for %q", ErrUnknownCommand, name, parent)
}

func describeSource(spec *CommandSpec) string {
	if spec.Source == "" || spec.Source == SourceBuiltin {
		return SourceBuiltin
	}
	return spec.Source
}
