package environment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// LoadEnvironment reads the environment document at path, resolves its
// imports, expands home-directory shorthand and returns the result.
func LoadEnvironment(path string) (*Environment, error) {
	doc, err := loadDocument(path, nil)
	if err != nil {
		return nil, err
	}
	doc = ExpandHome(doc, homeDir())

	log.Debug().Str("path", path).Int("computers", len(sectionOf(doc, SectionComputers))).Msg("environment loaded")
	return New(doc), nil
}

func loadDocument(path string, stack []string) (map[string]interface{}, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errdefs.NewConfigLoadError(path, err)
	}
	for _, seen := range stack {
		if seen == abs {
			chain := append(append([]string{}, stack...), abs)
			return nil, errdefs.NewConfigLoadError(path,
				fmt.Errorf("import cycle: %s", strings.Join(chain, " -> ")))
		}
	}

	doc, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	return resolveImports(path, doc, append(stack, abs))
}

// parseFile reads and parses a single document without resolving imports.
func parseFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.NewConfigLoadError(path, err).WithStage("read")
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errdefs.NewConfigLoadError(path, err).WithStage("parse")
	}
	if raw == nil {
		return map[string]interface{}{}, nil
	}

	doc, ok := normalize(raw).(map[string]interface{})
	if !ok {
		return nil, errdefs.NewConfigLoadError(path,
			fmt.Errorf("top level must be a mapping, got %T", raw)).WithStage("parse")
	}
	return doc, nil
}

// resolveImports expands imports at the top of the document and at the top of
// each section.
func resolveImports(path string, doc map[string]interface{}, stack []string) (map[string]interface{}, error) {
	merged, err := mergeImports(path, doc, stack)
	if err != nil {
		return nil, err
	}

	result := make(map[string]interface{}, len(merged))
	for key, value := range merged {
		section, ok := value.(map[string]interface{})
		if !ok {
			result[key] = value
			continue
		}
		expanded, err := mergeImports(path, section, stack)
		if err != nil {
			return nil, err
		}
		result[key] = expanded
	}
	return result, nil
}

// mergeImports loads every file listed under the mapping's imports key, merges
// them in order and overlays the mapping's own keys. The imports key is dropped.
func mergeImports(path string, m map[string]interface{}, stack []string) (map[string]interface{}, error) {
	raw, ok := m[importsKey]
	if !ok {
		return m, nil
	}

	files, err := stringList(raw)
	if err != nil {
		return nil, errdefs.NewConfigLoadError(path, fmt.Errorf("imports: %w", err)).WithStage("imports")
	}

	base := map[string]interface{}{}
	for _, file := range files {
		log.Debug().Str("from", path).Str("import", file).Msg("importing document")
		imported, err := loadDocument(file, stack)
		if err != nil {
			return nil, err
		}
		base = MergeMaps(base, imported)
	}

	own := make(map[string]interface{}, len(m))
	for k, v := range m {
		if k != importsKey {
			own[k] = v
		}
	}
	return MergeMaps(base, own), nil
}

// normalize converts the map[interface{}]interface{} values yaml produces for
// non-string keys into map[string]interface{}.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []interface{}:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	default:
		return val
	}
}

func sectionOf(doc map[string]interface{}, name string) map[string]interface{} {
	m, _ := doc[name].(map[string]interface{})
	return m
}
