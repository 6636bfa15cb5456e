package guards

import (
	"path/filepath"
	"strings"
	"testing"
)

// Domain packages under internal/components must stay transport-agnostic.
// Only the api handler package may depend on HTTP.
func TestDomainComponentsDoNotImportHTTP(t *testing.T) {
	repoRoot := findRepoRoot(t)
	componentsDir := filepath.Join(repoRoot, "internal", "components")

	forbidden := []string{
		`"net/http"`,
		`"github.com/go-chi/chi/v5"`,
		"/internal/platform/http/",
		"/internal/components/api\"",
		"/internal/services/",
	}

	var violations []string
	walkGoFiles(t, componentsDir, func(path, content string) {
		if strings.Contains(path, "/components/api/") {
			return
		}
		for _, imp := range forbidden {
			if strings.Contains(content, imp) {
				rel, _ := filepath.Rel(repoRoot, path)
				violations = append(violations, rel+": imports "+imp)
			}
		}
	})
	if len(violations) > 0 {
		t.Fatalf("domain components must not depend on the HTTP layer:\n%s",
			strings.Join(violations, "\n"))
	}
}

// Storage drivers are selected by name at startup; nothing but main and the
// driver tests may import a concrete driver.
func TestOnlyMainImportsStoreDrivers(t *testing.T) {
	repoRoot := findRepoRoot(t)
	drivers := []string{
		"/internal/platform/store/memory\"",
		"/internal/platform/store/sqlite\"",
	}

	var violations []string
	walkGoFiles(t, filepath.Join(repoRoot, "internal"), func(path, content string) {
		if strings.Contains(path, "/platform/store/") {
			return
		}
		for _, imp := range drivers {
			if strings.Contains(content, imp) {
				rel, _ := filepath.Rel(repoRoot, path)
				violations = append(violations, rel+": imports "+strings.TrimSuffix(imp, "\""))
			}
		}
	})
	if len(violations) > 0 {
		t.Fatalf("store drivers must be wired from cmd/ only:\n%s", strings.Join(violations, "\n"))
	}
}
