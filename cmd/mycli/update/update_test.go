package update

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Miyamura80/CLI-Template/internal/branding"
	"github.com/Miyamura80/CLI-Template/internal/clierrors"
	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/pkg/render"
	updater "github.com/Miyamura80/CLI-Template/pkg/update"
)

func mustInvocation(t *testing.T, opts invocation.Options) *invocation.Context {
	t.Helper()
	inv, err := invocation.New(opts)
	if err != nil {
		t.Fatalf("invocation.New: %v", err)
	}
	return inv
}

func manifestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func testDeps(out, errOut *bytes.Buffer, url, version string) Deps {
	return Deps{
		Out:     out,
		Err:     errOut,
		Brand:   branding.Brand{Styles: render.NewStyles("cyan", "green", false)},
		Version: version,
		Checker: func() (*updater.Checker, error) { return updater.NewChecker(url), nil },
	}
}

func TestRunUpdateNewerAvailable(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"version":"1.3.0","url":"https://example.com/dl","notes":"Faster startup"}`)
	out := &bytes.Buffer{}
	inv := mustInvocation(t, invocation.Options{})

	if err := RunUpdateForTest(inv, Options{}, nil, testDeps(out, &bytes.Buffer{}, server.URL, "1.2.0")); err != nil {
		t.Fatalf("RunUpdateForTest returned error: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "update available: v1.3.0 (current v1.2.0)") {
		t.Fatalf("expected availability line, got:\n%s", got)
	}
	if !strings.Contains(got, "notes: Faster startup") {
		t.Fatalf("expected release notes, got:\n%s", got)
	}
	if !strings.Contains(got, "run 'mycli update --apply'") {
		t.Fatalf("expected apply hint, got:\n%s", got)
	}
}

func TestRunUpdateUpToDate(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"version":"1.2.0"}`)
	out := &bytes.Buffer{}
	inv := mustInvocation(t, invocation.Options{})

	if err := RunUpdateForTest(inv, Options{}, nil, testDeps(out, &bytes.Buffer{}, server.URL, "v1.2.0")); err != nil {
		t.Fatalf("RunUpdateForTest returned error: %v", err)
	}
	if got := out.String(); got != "mycli is up to date (v1.2.0)\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestRunUpdateSoftFailOnServerError(t *testing.T) {
	server := manifestServer(t, http.StatusInternalServerError, "boom")
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	inv := mustInvocation(t, invocation.Options{})

	if err := RunUpdateForTest(inv, Options{}, nil, testDeps(out, errOut, server.URL, "1.2.0")); err != nil {
		t.Fatalf("check failure must not be an error, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("soft failure must not write to stdout, got %q", out.String())
	}
	if !strings.Contains(errOut.String(), "update check failed") {
		t.Fatalf("expected warning on stderr, got %q", errOut.String())
	}
}

func TestRunUpdateSoftFailOnBadManifest(t *testing.T) {
	server := manifestServer(t, http.StatusOK, "not json at all")
	errOut := &bytes.Buffer{}
	inv := mustInvocation(t, invocation.Options{})

	if err := RunUpdateForTest(inv, Options{}, nil, testDeps(&bytes.Buffer{}, errOut, server.URL, "1.2.0")); err != nil {
		t.Fatalf("manifest failure must not be an error, got %v", err)
	}
	if !strings.Contains(errOut.String(), "update check failed") {
		t.Fatalf("expected warning on stderr, got %q", errOut.String())
	}
}

func TestRunUpdateDevBuildSkipsCheck(t *testing.T) {
	// The checker would fail if contacted; a dev build must never fetch.
	server := manifestServer(t, http.StatusOK, `{"version":"9.9.9"}`)
	server.Close()
	out := &bytes.Buffer{}
	inv := mustInvocation(t, invocation.Options{})

	if err := RunUpdateForTest(inv, Options{}, nil, testDeps(out, &bytes.Buffer{}, server.URL, "dev")); err != nil {
		t.Fatalf("RunUpdateForTest returned error: %v", err)
	}
	if got := out.String(); got != "development build; skipping update check\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestRunUpdateApplyPrintsInstallCommand(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"version":"2.0.0"}`)
	out := &bytes.Buffer{}
	inv := mustInvocation(t, invocation.Options{})

	if err := RunUpdateForTest(inv, Options{Apply: true}, nil, testDeps(out, &bytes.Buffer{}, server.URL, "1.0.0")); err != nil {
		t.Fatalf("RunUpdateForTest returned error: %v", err)
	}
	want := "run: go install github.com/Miyamura80/CLI-Template/cmd/mycli@v2.0.0"
	if !strings.Contains(out.String(), want) {
		t.Fatalf("expected install command %q, got:\n%s", want, out.String())
	}
}

func TestRunUpdateApplyDryRun(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"version":"2.0.0"}`)
	out := &bytes.Buffer{}
	inv := mustInvocation(t, invocation.Options{DryRun: true})

	if err := RunUpdateForTest(inv, Options{Apply: true}, nil, testDeps(out, &bytes.Buffer{}, server.URL, "1.0.0")); err != nil {
		t.Fatalf("RunUpdateForTest returned error: %v", err)
	}
	if !strings.Contains(out.String(), "[DRY RUN] Would install mycli v2.0.0") {
		t.Fatalf("expected dry-run notice, got:\n%s", out.String())
	}
}

func TestRunUpdateQuiet(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"version":"1.3.0"}`)

	newer := &bytes.Buffer{}
	quiet := mustInvocation(t, invocation.Options{Quiet: true})
	if err := RunUpdateForTest(quiet, Options{}, nil, testDeps(newer, &bytes.Buffer{}, server.URL, "1.2.0")); err != nil {
		t.Fatalf("RunUpdateForTest returned error: %v", err)
	}
	if got := newer.String(); got != "v1.3.0\n" {
		t.Fatalf("quiet newer must print just the version, got %q", got)
	}

	current := &bytes.Buffer{}
	if err := RunUpdateForTest(quiet, Options{}, nil, testDeps(current, &bytes.Buffer{}, server.URL, "1.3.0")); err != nil {
		t.Fatalf("RunUpdateForTest returned error: %v", err)
	}
	if current.Len() != 0 {
		t.Fatalf("quiet up-to-date must print nothing, got %q", current.String())
	}
}

func TestRunUpdateJSON(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"version":"1.3.0","url":"https://example.com/dl"}`)
	out := &bytes.Buffer{}
	inv := mustInvocation(t, invocation.Options{Format: "json"})

	if err := RunUpdateForTest(inv, Options{}, nil, testDeps(out, &bytes.Buffer{}, server.URL, "1.2.0")); err != nil {
		t.Fatalf("RunUpdateForTest returned error: %v", err)
	}
	var decoded struct {
		Current string `json:"current"`
		Latest  string `json:"latest"`
		Newer   bool   `json:"newer"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out.String())
	}
	if decoded.Current != "1.2.0" || decoded.Latest != "1.3.0" || !decoded.Newer {
		t.Fatalf("unexpected document: %+v", decoded)
	}
}

func TestRunUpdateRejectsArguments(t *testing.T) {
	inv := mustInvocation(t, invocation.Options{})

	err := RunUpdateForTest(inv, Options{}, []string{"extra"}, testDeps(&bytes.Buffer{}, &bytes.Buffer{}, "http://127.0.0.1:0", "1.0.0"))
	var exitErr *clierrors.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("expected usage error with code 2, got %v", err)
	}
}
