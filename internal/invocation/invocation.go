package invocation

import (
	"context"
	"fmt"
)

// Format selects the output rendering mode for a single invocation.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatPlain Format = "plain"
)

// ErrInvalidFormat indicates a --format value outside the supported set.
var ErrInvalidFormat = fmt.Errorf("invalid output format")

// ParseFormat normalises a --format flag value.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatTable, FormatJSON, FormatPlain:
		return Format(raw), nil
	default:
		return "", fmt.Errorf("%w: %q (expected table, json, or plain)", ErrInvalidFormat, raw)
	}
}

// Options captures the global flag values gathered before command execution.
type Options struct {
	Verbose bool
	Quiet   bool
	Debug   bool
	DryRun  bool
	Format  string
}

// Context is the immutable per-invocation snapshot of the global flags. It is
// built once before any command logic runs and handed to commands explicitly;
// nothing in the process consults the flag set after construction.
type Context struct {
	verbose bool
	quiet   bool
	debug   bool
	dryRun  bool
	format  Format
}

// New validates the gathered flag values and freezes them into a Context.
func New(opts Options) (*Context, error) {
	format := FormatTable
	if opts.Format != "" {
		parsed, err := ParseFormat(opts.Format)
		if err != nil {
			return nil, err
		}
		format = parsed
	}
	return &Context{
		verbose: opts.Verbose && !opts.Quiet,
		quiet:   opts.Quiet,
		debug:   opts.Debug,
		dryRun:  opts.DryRun,
		format:  format,
	}, nil
}

func (c *Context) Verbose() bool { return c.verbose }

func (c *Context) Quiet() bool { return c.quiet }

func (c *Context) Debug() bool { return c.debug }

// DryRun reports whether the invocation must avoid all side effects. Commands
// honouring it describe the mutation they would perform instead of writing
// state, spawning processes, or recording events.
func (c *Context) DryRun() bool { return c.dryRun }

func (c *Context) Format() Format { return c.format }

type contextKey struct{}

// WithContext stores the invocation snapshot on a context for retrieval at
// dispatch time.
func WithContext(ctx context.Context, inv *Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, inv)
}

// FromContext retrieves the invocation snapshot stored by WithContext.
func FromContext(ctx context.Context) (*Context, bool) {
	if ctx == nil {
		return nil, false
	}
	inv, ok := ctx.Value(contextKey{}).(*Context)
	return inv, ok
}
