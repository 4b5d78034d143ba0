package ingest

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dverstak/triage/pkg/models"
)

// suiteDoc mirrors the runner's YAML test file layout. Fields the triage
// service does not check (commands, env setup, timeouts) are ignored by the
// decoder.
type suiteDoc struct {
	Name  string    `yaml:"name"`
	Tests []testDoc `yaml:"tests"`
}

type testDoc struct {
	Name                   string       `yaml:"name"`
	ExpectedExitCode       *int         `yaml:"expected_exit_code"`
	ExpectedOutputContains stringList   `yaml:"expected_output_contains"`
	Validate               validateList `yaml:"validate"`
}

// stringList accepts both a scalar and a sequence, as the runner does.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = []string{s}
		return nil
	}
	var ss []string
	if err := value.Decode(&ss); err != nil {
		return err
	}
	*l = ss
	return nil
}

// validateList accepts the runner's validation block: a sequence of
// single-key maps such as `- output_exists: out/result.nii`.
type validateList []map[string]yaml.Node

func (v *validateList) mode() models.ValidateMode {
	for _, entry := range *v {
		for key := range entry {
			if key == "output_exists" {
				return models.ValidateOutputExists
			}
		}
	}
	return models.ValidateNone
}

// ReadExpectations parses one YAML expectation document into a per-test set,
// keyed by test name, and the suite name it declares.
func ReadExpectations(r io.Reader) (suite string, set models.ExpectationSet, err error) {
	var doc suiteDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return "", nil, fmt.Errorf("decoding expectation document: %w", err)
	}

	set = make(models.ExpectationSet, len(doc.Tests))
	for _, t := range doc.Tests {
		if t.Name == "" {
			continue
		}
		set[t.Name] = models.ExpectationSpec{
			ExpectedExitCode:       t.ExpectedExitCode,
			ExpectedOutputContains: t.ExpectedOutputContains,
			Validate:               t.Validate.mode(),
		}
	}
	return doc.Name, set, nil
}

// LoadExpectationsDir reads every *.yaml/*.yml file under dir and returns
// expectation sets keyed by suite name (the document's name field, falling
// back to the file stem). Unreadable or malformed documents are skipped with
// a warning; the suites they cover classify without expectations.
func LoadExpectationsDir(dir string) (map[string]models.ExpectationSet, error) {
	sets := make(map[string]models.ExpectationSet)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			slog.Warn("skipping unreadable expectation document", "path", path, "error", err)
			return nil
		}
		defer f.Close()

		suite, set, err := ReadExpectations(f)
		if err != nil {
			slog.Warn("skipping malformed expectation document", "path", path, "error", err)
			return nil
		}
		if suite == "" {
			suite = strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		}
		sets[suite] = set
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking expectations dir: %w", err)
	}
	return sets, nil
}
