package update_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Miyamura80/CLI-Template/pkg/update"
)

func manifestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCheckReportsNewerVersion(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"version":"1.4.0","url":"https://example.com/release"}`)

	outcome, err := update.NewChecker(server.URL).Check(context.Background(), "1.2.3")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !outcome.Newer {
		t.Fatalf("expected newer release")
	}
	if outcome.Latest.String() != "1.4.0" {
		t.Fatalf("latest = %s", outcome.Latest)
	}
	if outcome.Release.URL != "https://example.com/release" {
		t.Fatalf("release url = %q", outcome.Release.URL)
	}
}

func TestCheckReportsUpToDate(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"version":"1.2.3"}`)

	outcome, err := update.NewChecker(server.URL).Check(context.Background(), "v1.2.3")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if outcome.Newer {
		t.Fatalf("expected up-to-date result")
	}
}

func TestCheckAcceptsVPrefixedManifest(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"version":"v2.0.0"}`)

	outcome, err := update.NewChecker(server.URL).Check(context.Background(), "1.9.9")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !outcome.Newer {
		t.Fatalf("expected newer release")
	}
}

func TestCheckRejectsDevBuilds(t *testing.T) {
	if _, err := update.NewChecker("http://127.0.0.1:0").Check(context.Background(), "dev"); !errors.Is(err, update.ErrVersionInvalid()) {
		t.Fatalf("expected invalid version error, got %v", err)
	}
}

func TestCheckWrapsHTTPFailures(t *testing.T) {
	server := manifestServer(t, http.StatusInternalServerError, "")

	if _, err := update.NewChecker(server.URL).Check(context.Background(), "1.0.0"); !errors.Is(err, update.ErrCheckFailed()) {
		t.Fatalf("expected check failed error, got %v", err)
	}
}

func TestCheckWrapsUnreachableHost(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"version":"1.0.0"}`)
	url := server.URL
	server.Close()

	if _, err := update.NewChecker(url).Check(context.Background(), "1.0.0"); !errors.Is(err, update.ErrCheckFailed()) {
		t.Fatalf("expected check failed error, got %v", err)
	}
}

func TestCheckRejectsMalformedManifest(t *testing.T) {
	server := manifestServer(t, http.StatusOK, "not json")

	if _, err := update.NewChecker(server.URL).Check(context.Background(), "1.0.0"); !errors.Is(err, update.ErrManifestInvalid()) {
		t.Fatalf("expected manifest invalid error, got %v", err)
	}
}

func TestCheckRejectsMissingVersion(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"url":"https://example.com"}`)

	if _, err := update.NewChecker(server.URL).Check(context.Background(), "1.0.0"); !errors.Is(err, update.ErrManifestInvalid()) {
		t.Fatalf("expected manifest invalid error, got %v", err)
	}
}

func TestCheckRejectsUnparseableManifestVersion(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"version":"latest"}`)

	if _, err := update.NewChecker(server.URL).Check(context.Background(), "1.0.0"); !errors.Is(err, update.ErrManifestInvalid()) {
		t.Fatalf("expected manifest invalid error, got %v", err)
	}
}
