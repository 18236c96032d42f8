package blob

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// Import boundaries around artifact storage: the infra backends stay behind
// this package, and the model store tree never grows a blob dependency.
func TestArtifactStoreImportBoundaries(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "tablecore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	rules := []struct {
		name      string
		subject   string // restrict the check to packages under this prefix; empty checks all
		forbidden string
		exempt    []string
	}{
		{
			name:      "infra backends stay behind the wrapper",
			forbidden: "tablecore/internal/infra/blob",
			exempt:    []string{"tablecore/internal/blob", "tablecore/internal/infra/blob"},
		},
		{
			name:      "model stores stay free of artifact storage",
			subject:   "tablecore/internal/infra/modelstore",
			forbidden: "tablecore/internal/blob",
		},
	}

	for _, rule := range rules {
		t.Run(rule.name, func(t *testing.T) {
			var violations []string
			for _, pkg := range pkgs {
				if rule.subject != "" && !underPrefix(pkg.PkgPath, rule.subject) {
					continue
				}
				if exemptImporter(pkg.PkgPath, rule.exempt) {
					continue
				}
				for importPath := range pkg.Imports {
					if underPrefix(importPath, rule.forbidden) {
						violations = append(violations, pkg.PkgPath+" imports "+importPath)
					}
				}
			}
			sort.Strings(violations)
			for _, v := range violations {
				t.Errorf("forbidden import: %s", v)
			}
		})
	}
}

func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func exemptImporter(path string, exempt []string) bool {
	for _, prefix := range exempt {
		if underPrefix(path, prefix) {
			return true
		}
	}
	return false
}
