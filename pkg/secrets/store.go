package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	errKeyNotFound = errors.New("secret not found")
	errInvalidKey  = errors.New("invalid secret name")
	errStoreWrite  = errors.New("secrets store could not be written")

	keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ErrKeyNotFound reports a lookup for a secret that does not exist.
func ErrKeyNotFound() error {
	return errKeyNotFound
}

// ErrInvalidKey reports a secret name outside the accepted pattern.
func ErrInvalidKey() error {
	return errInvalidKey
}

// ErrStoreWrite reports a failed store update.
func ErrStoreWrite() error {
	return errStoreWrite
}

// ValidateKey checks name against the accepted secret name pattern.
func ValidateKey(name string) error {
	if !keyPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", errInvalidKey, name)
	}
	return nil
}

// Store persists named secrets in a single encrypted file. Every operation
// decrypts the file, applies the change, and writes a fresh envelope through
// a temp file rename so a failed write never corrupts the previous state.
type Store struct {
	path       string
	passphrase string
	dirPerm    os.FileMode
	filePerm   os.FileMode
}

// NewStore returns a store backed by the file at path.
func NewStore(path, passphrase string) *Store {
	return &Store{
		path:       path,
		passphrase: passphrase,
		dirPerm:    0o700,
		filePerm:   0o600,
	}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Set stores value under name, replacing any existing value.
func (s *Store) Set(name, value string) error {
	if err := ValidateKey(name); err != nil {
		return err
	}

	values, err := s.load()
	if err != nil {
		return err
	}
	values[name] = value
	return s.save(values)
}

// Get returns the value stored under name.
func (s *Store) Get(name string) (string, error) {
	values, err := s.load()
	if err != nil {
		return "", err
	}
	value, ok := values[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", errKeyNotFound, name)
	}
	return value, nil
}

// Delete removes the value stored under name.
func (s *Store) Delete(name string) error {
	values, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := values[name]; !ok {
		return fmt.Errorf("%w: %q", errKeyNotFound, name)
	}
	delete(values, name)
	return s.save(values)
}

// Values returns a copy of every stored secret keyed by name.
func (s *Store) Values() (map[string]string, error) {
	values, err := s.load()
	if err != nil {
		return nil, err
	}
	copied := make(map[string]string, len(values))
	for name, value := range values {
		copied[name] = value
	}
	return copied, nil
}

// List returns the stored secret names in sorted order.
func (s *Store) List() ([]string, error) {
	values, err := s.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ParseDotenv reads dotenv-style lines from r: blank lines and comments are
// skipped, an optional "export " prefix is dropped, and quoted values are
// unquoted. Nothing is stored.
func ParseDotenv(r io.Reader) (map[string]string, error) {
	values := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		name, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("%w: line %q has no assignment", errInvalidKey, line)
		}
		name = strings.TrimSpace(name)
		if err := ValidateKey(name); err != nil {
			return nil, err
		}
		values[name] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}
	return values, nil
}

// Import stores every assignment parsed from r, overwriting existing values.
// It returns the number of secrets imported.
func (s *Store) Import(r io.Reader) (int, error) {
	parsed, err := ParseDotenv(r)
	if err != nil {
		return 0, err
	}

	values, err := s.load()
	if err != nil {
		return 0, err
	}
	for name, value := range parsed {
		values[name] = value
	}

	if err := s.save(values); err != nil {
		return 0, err
	}
	return len(parsed), nil
}

// Export writes every secret to w as dotenv-style lines in sorted order.
// It returns the number of secrets written.
func (s *Store) Export(w io.Writer) (int, error) {
	values, err := s.load()
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s=%s\n", name, quote(values[name])); err != nil {
			return 0, fmt.Errorf("write export: %w", err)
		}
	}
	return len(names), nil
}

func (s *Store) load() (map[string]string, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read secrets store: %w", err)
	}

	plaintext, err := Decrypt(payload, s.passphrase)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(plaintext)

	values := map[string]string{}
	if err := yaml.Unmarshal(plaintext, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidEnvelope, err)
	}
	return values, nil
}

func (s *Store) save(values map[string]string) error {
	plaintext, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("%w: %w", errStoreWrite, err)
	}
	defer zeroBytes(plaintext)

	payload, err := Encrypt(plaintext, s.passphrase)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return fmt.Errorf("%w: %w", errStoreWrite, err)
	}

	tmp, err := os.CreateTemp(dir, ".secrets-*")
	if err != nil {
		return fmt.Errorf("%w: %w", errStoreWrite, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(s.filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", errStoreWrite, err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", errStoreWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", errStoreWrite, err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("%w: %w", errStoreWrite, err)
	}
	return nil
}

func quote(value string) string {
	if !strings.ContainsAny(value, " \t#\"'\n") {
		return value
	}
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	return `"` + escaped + `"`
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	if value[0] == '\'' && value[len(value)-1] == '\'' {
		return value[1 : len(value)-1]
	}
	if value[0] == '"' && value[len(value)-1] == '"' {
		inner := value[1 : len(value)-1]
		inner = strings.ReplaceAll(inner, `\n`, "\n")
		inner = strings.ReplaceAll(inner, `\"`, `"`)
		inner = strings.ReplaceAll(inner, `\\`, `\`)
		return inner
	}
	return value
}
