// Package secrets implements the secrets command group backed by the
// encrypted store: set, get, delete, list, import, and export.
package secrets

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/Miyamura80/CLI-Template/internal/branding"
	"github.com/Miyamura80/CLI-Template/internal/clierrors"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/internal/paths"
	"github.com/Miyamura80/CLI-Template/internal/registry"
	"github.com/Miyamura80/CLI-Template/internal/settings"
	"github.com/Miyamura80/CLI-Template/pkg/render"
	secrethandler "github.com/Miyamura80/CLI-Template/pkg/secrets"
)

var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
	stdinFD      = func() int { return int(os.Stdin.Fd()) }
)

// Environment locates the encrypted store and carries the passphrase sourced
// from the process environment. An empty passphrase triggers an interactive
// prompt.
type Environment struct {
	StorePath  string
	Passphrase string
}

// Deps carries the collaborators the secrets commands run with.
type Deps struct {
	Out   io.Writer
	Err   io.Writer
	In    io.Reader
	Brand branding.Brand
	Env   func() (Environment, error)
}

// GetOptions bundles the secrets get flags.
type GetOptions struct {
	Reveal bool
}

// ImportOptions bundles the secrets import flags.
type ImportOptions struct {
	File string
}

// ExportOptions bundles the secrets export flags.
type ExportOptions struct {
	Reveal bool
}

func defaultDeps() Deps {
	return Deps{
		Out:   os.Stdout,
		Err:   os.Stderr,
		In:    os.Stdin,
		Brand: branding.Resolve(),
		Env:   defaultEnvironment,
	}
}

func defaultEnvironment() (Environment, error) {
	cfg, err := settings.Load()
	if err != nil {
		return Environment{}, err
	}
	resolver := paths.NewResolver(paths.Overrides{ConfigDir: cfg.ConfigDir, CommandsDir: cfg.CommandsDir})
	storePath, err := resolver.SecretsFile()
	if err != nil {
		return Environment{}, err
	}
	return Environment{StorePath: storePath, Passphrase: cfg.SecretsPassphrase}, nil
}

// Spec returns the secrets command group.
func Spec() *registry.CommandSpec {
	return SpecWithDeps(defaultDeps())
}

// SpecWithDeps returns the secrets command group bound to explicit
// dependencies.
func SpecWithDeps(deps Deps) *registry.CommandSpec {
	getOpts := &GetOptions{}
	importOpts := &ImportOptions{}
	exportOpts := &ExportOptions{}

	return &registry.CommandSpec{
		Name:    "secrets",
		Kind:    registry.KindGroup,
		Summary: "Manage the encrypted secret store",
		Source:  registry.SourceBuiltin,
		Children: []*registry.CommandSpec{
			{
				Name:    "set",
				Kind:    registry.KindLeaf,
				Summary: "Store a secret, prompting for the value if omitted",
				Source:  registry.SourceBuiltin,
				Run: func(inv *invocation.Context, args []string) error {
					return runSet(inv, args, deps)
				},
			},
			{
				Name:    "get",
				Kind:    registry.KindLeaf,
				Summary: "Print a secret, masked unless --reveal is given",
				Source:  registry.SourceBuiltin,
				Flags: func(fs *pflag.FlagSet) {
					fs.BoolVar(&getOpts.Reveal, "reveal", false, "Print the plaintext value")
				},
				Run: func(inv *invocation.Context, args []string) error {
					return runGet(inv, *getOpts, args, deps)
				},
			},
			{
				Name:    "delete",
				Kind:    registry.KindLeaf,
				Summary: "Remove a secret from the store",
				Source:  registry.SourceBuiltin,
				Run: func(inv *invocation.Context, args []string) error {
					return runDelete(inv, args, deps)
				},
			},
			{
				Name:    "list",
				Kind:    registry.KindLeaf,
				Summary: "List stored secret names",
				Source:  registry.SourceBuiltin,
				Run: func(inv *invocation.Context, args []string) error {
					return runList(inv, args, deps)
				},
			},
			{
				Name:    "import",
				Kind:    registry.KindLeaf,
				Summary: "Import secrets from dotenv input",
				Source:  registry.SourceBuiltin,
				Flags: func(fs *pflag.FlagSet) {
					fs.StringVar(&importOpts.File, "file", "", "Read from a dotenv file instead of stdin")
				},
				Run: func(inv *invocation.Context, args []string) error {
					return runImport(inv, *importOpts, args, deps)
				},
			},
			{
				Name:    "export",
				Kind:    registry.KindLeaf,
				Summary: "Write secrets as dotenv lines, masked unless --reveal is given",
				Source:  registry.SourceBuiltin,
				Flags: func(fs *pflag.FlagSet) {
					fs.BoolVar(&exportOpts.Reveal, "reveal", false, "Write plaintext values")
				},
				Run: func(inv *invocation.Context, args []string) error {
					return runExport(inv, *exportOpts, args, deps)
				},
			},
		},
	}
}

// RunSetForTest executes secrets set with explicit dependencies.
func RunSetForTest(inv *invocation.Context, args []string, deps Deps) error {
	return runSet(inv, args, deps)
}

// RunGetForTest executes secrets get with explicit dependencies.
func RunGetForTest(inv *invocation.Context, opts GetOptions, args []string, deps Deps) error {
	return runGet(inv, opts, args, deps)
}

// RunDeleteForTest executes secrets delete with explicit dependencies.
func RunDeleteForTest(inv *invocation.Context, args []string, deps Deps) error {
	return runDelete(inv, args, deps)
}

// RunListForTest executes secrets list with explicit dependencies.
func RunListForTest(inv *invocation.Context, args []string, deps Deps) error {
	return runList(inv, args, deps)
}

// RunImportForTest executes secrets import with explicit dependencies.
func RunImportForTest(inv *invocation.Context, opts ImportOptions, args []string, deps Deps) error {
	return runImport(inv, opts, args, deps)
}

// RunExportForTest executes secrets export with explicit dependencies.
func RunExportForTest(inv *invocation.Context, opts ExportOptions, args []string, deps Deps) error {
	return runExport(inv, opts, args, deps)
}

func runSet(inv *invocation.Context, args []string, deps Deps) error {
	if len(args) < 1 || len(args) > 2 {
		return clierrors.Usagef("secrets set expects a name and an optional value")
	}
	name := args[0]
	if err := secrethandler.ValidateKey(name); err != nil {
		return err
	}

	if inv.DryRun() {
		fmt.Fprintf(deps.Out, "[DRY RUN] Would set secret %s\n", name)
		return nil
	}

	value := ""
	if len(args) == 2 {
		value = args[1]
	} else {
		prompted, err := promptForValue(deps, name)
		if err != nil {
			return err
		}
		value = prompted
	}

	store, err := openStore(deps, true)
	if err != nil {
		return err
	}
	if err := store.Set(name, value); err != nil {
		return err
	}
	if !inv.Quiet() {
		fmt.Fprintf(deps.Out, "set secret %s\n", name)
	}
	return nil
}

func runGet(inv *invocation.Context, opts GetOptions, args []string, deps Deps) error {
	if len(args) != 1 {
		return clierrors.Usagef("secrets get expects exactly one name")
	}
	store, err := openStore(deps, false)
	if err != nil {
		return err
	}
	value, err := store.Get(args[0])
	if err != nil {
		return err
	}

	display := secrethandler.Mask(value)
	if opts.Reveal {
		display = value
	}

	if inv.Format() == invocation.FormatJSON {
		renderer := render.New(deps.Out, deps.Brand.Styles)
		return renderer.Render(string(inv.Format()), render.Document{
			Payload: map[string]any{
				"name":     args[0],
				"value":    display,
				"revealed": opts.Reveal,
			},
		})
	}
	fmt.Fprintln(deps.Out, display)
	return nil
}

func runDelete(inv *invocation.Context, args []string, deps Deps) error {
	if len(args) != 1 {
		return clierrors.Usagef("secrets delete expects exactly one name")
	}
	name := args[0]

	if inv.DryRun() {
		fmt.Fprintf(deps.Out, "[DRY RUN] Would delete secret %s\n", name)
		return nil
	}

	store, err := openStore(deps, false)
	if err != nil {
		return err
	}
	if err := store.Delete(name); err != nil {
		return err
	}
	if !inv.Quiet() {
		fmt.Fprintf(deps.Out, "deleted secret %s\n", name)
	}
	return nil
}

func runList(inv *invocation.Context, args []string, deps Deps) error {
	if len(args) > 0 {
		return clierrors.Usagef("secrets list takes no arguments")
	}
	store, err := openStore(deps, false)
	if err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return err
	}

	if inv.Quiet() {
		for _, name := range names {
			fmt.Fprintln(deps.Out, name)
		}
		return nil
	}

	if len(names) == 0 && inv.Format() == invocation.FormatTable {
		fmt.Fprintln(deps.Out, "no secrets stored")
		return nil
	}

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name})
	}
	renderer := render.New(deps.Out, deps.Brand.Styles)
	if inv.Format() == invocation.FormatTable {
		renderer.Heading("Secrets")
	}
	return renderer.Render(string(inv.Format()), render.Document{
		Table:   render.Table{Columns: []string{"name"}, Rows: rows},
		Payload: map[string]any{"secrets": names, "count": len(names)},
	})
}

func runImport(inv *invocation.Context, opts ImportOptions, args []string, deps Deps) error {
	if len(args) > 0 {
		return clierrors.Usagef("secrets import reads stdin or --file")
	}

	reader := deps.In
	if opts.File != "" {
		f, err := os.Open(opts.File)
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		reader = f
	}

	if inv.DryRun() {
		parsed, err := secrethandler.ParseDotenv(reader)
		if err != nil {
			return err
		}
		fmt.Fprintf(deps.Out, "[DRY RUN] Would import %d secrets\n", len(parsed))
		return nil
	}

	store, err := openStore(deps, true)
	if err != nil {
		return err
	}
	count, err := store.Import(reader)
	if err != nil {
		return err
	}
	if !inv.Quiet() {
		fmt.Fprintf(deps.Out, "imported %d secrets\n", count)
	}
	return nil
}

func runExport(inv *invocation.Context, opts ExportOptions, args []string, deps Deps) error {
	if len(args) > 0 {
		return clierrors.Usagef("secrets export takes no arguments")
	}
	store, err := openStore(deps, false)
	if err != nil {
		return err
	}

	if opts.Reveal {
		_, err := store.Export(deps.Out)
		return err
	}

	values, err := store.Values()
	if err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintf(deps.Out, "%s=%s\n", name, secrethandler.Mask(values[name]))
	}
	return nil
}

// openStore resolves the store location and passphrase. Reads against a store
// that does not exist yet skip the passphrase entirely; the first write
// prompts with confirmation when no passphrase is configured.
func openStore(deps Deps, forWrite bool) (*secrethandler.Store, error) {
	env, err := deps.Env()
	if err != nil {
		return nil, err
	}
	_, statErr := os.Stat(env.StorePath)
	missing := os.IsNotExist(statErr)
	if missing && !forWrite {
		return secrethandler.NewStore(env.StorePath, ""), nil
	}

	passphrase, err := resolveStorePassphrase(deps, env, missing)
	if err != nil {
		return nil, err
	}
	return secrethandler.NewStore(env.StorePath, passphrase), nil
}

func resolveStorePassphrase(deps Deps, env Environment, confirm bool) (string, error) {
	if strings.TrimSpace(env.Passphrase) != "" {
		return env.Passphrase, nil
	}

	fd := stdinFD()
	if !isTerminal(fd) {
		return "", clierrors.Runtimef("a passphrase is required: set MYCLI_SECRETS_PASSPHRASE or run interactively")
	}

	fmt.Fprint(deps.Err, "Enter passphrase: ")
	pass1, err := readPassword(fd)
	fmt.Fprintln(deps.Err)
	if err != nil {
		return "", err
	}
	if len(pass1) == 0 {
		return "", clierrors.Runtimef("passphrase must not be empty")
	}
	if !confirm {
		passphrase := string(pass1)
		zero(pass1)
		return passphrase, nil
	}

	fmt.Fprint(deps.Err, "Confirm passphrase: ")
	pass2, err := readPassword(fd)
	fmt.Fprintln(deps.Err)
	if err != nil {
		zero(pass1)
		return "", err
	}
	if !bytes.Equal(pass1, pass2) {
		zero(pass1)
		zero(pass2)
		return "", clierrors.Runtimef("passphrases do not match")
	}

	passphrase := string(pass1)
	zero(pass1)
	zero(pass2)
	return passphrase, nil
}

func promptForValue(deps Deps, name string) (string, error) {
	fd := stdinFD()
	if isTerminal(fd) {
		fmt.Fprintf(deps.Err, "Value for %s: ", name)
		value, err := readPassword(fd)
		fmt.Fprintln(deps.Err)
		if err != nil {
			return "", err
		}
		if len(value) == 0 {
			return "", clierrors.Usagef("a value is required")
		}
		return string(value), nil
	}

	line, err := bufio.NewReader(deps.In).ReadString('\n')
	if err != nil && line == "" {
		return "", clierrors.Usagef("a value is required")
	}
	value := strings.TrimRight(line, "\r\n")
	if value == "" {
		return "", clierrors.Usagef("a value is required")
	}
	return value, nil
}

func zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
