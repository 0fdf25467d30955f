package fileset

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Render executes the template text against bindings. Every referenced key
// must be present.
func Render(name string, text []byte, bindings map[string]interface{}) ([]byte, error) {
	tmpl, err := template.New(name).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(string(text))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, bindings); err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// RenderFile reads and renders the template at path.
func RenderFile(path string, bindings map[string]interface{}) ([]byte, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Render(path, text, bindings)
}

// IsTemplate reports whether name carries the template extension.
func IsTemplate(name string) bool {
	return strings.HasSuffix(name, TemplateExt)
}

// OutputName strips the template extension, if any.
func OutputName(name string) string {
	return strings.TrimSuffix(name, TemplateExt)
}
