// Package scaffold generates new command unit files from the built-in
// template.
package scaffold

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

//go:embed unit.yaml.tmpl
var unitTemplate string

var (
	errInvalidName = errors.New("invalid command name")
	errUnitExists  = errors.New("command unit already exists")

	namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// ErrInvalidName reports a unit name outside the snake_case pattern.
func ErrInvalidName() error {
	return errInvalidName
}

// ErrUnitExists reports a scaffold target that already exists.
func ErrUnitExists() error {
	return errUnitExists
}

// Unit describes the command unit to generate.
type Unit struct {
	Name        string
	Description string
}

// Generator writes scaffolded unit files into a commands directory.
type Generator struct {
	dir string
	now func() time.Time
}

// NewGenerator returns a generator targeting dir.
func NewGenerator(dir string) *Generator {
	return &Generator{dir: dir, now: time.Now}
}

// Path returns the file the unit would be written to.
func (g *Generator) Path(unit Unit) string {
	return filepath.Join(g.dir, unit.Name+".yaml")
}

// Render produces the unit file contents without touching the filesystem.
func (g *Generator) Render(unit Unit) ([]byte, error) {
	if !namePattern.MatchString(unit.Name) {
		return nil, fmt.Errorf("%w: %q (want snake_case, e.g. my_command)", errInvalidName, unit.Name)
	}

	tmpl, err := template.New("unit").Funcs(sprig.FuncMap()).Parse(unitTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse unit template: %w", err)
	}

	data := struct {
		Name        string
		Description string
		Date        string
	}{
		Name:        unit.Name,
		Description: unit.Description,
		Date:        g.now().UTC().Format("2006-01-02"),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render unit template: %w", err)
	}
	return buf.Bytes(), nil
}

// Create renders the unit and writes it to the commands directory. An
// existing file is never overwritten.
func (g *Generator) Create(unit Unit) (string, error) {
	contents, err := g.Render(unit)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("create commands directory: %w", err)
	}

	path := g.Path(unit)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%w: %s", errUnitExists, path)
		}
		return "", fmt.Errorf("create unit file: %w", err)
	}

	if _, err := file.Write(contents); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("write unit file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close unit file: %w", err)
	}
	return path, nil
}
