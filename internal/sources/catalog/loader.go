// Package catalog reads the base service definitions shipped with the
// deployment.
package catalog

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of the service catalog file
type Loader struct {
	filePath string
	lookup   func(string) (string, bool)
}

// NewLoader creates a new catalog loader. Template variables are resolved
// from the process environment.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
		lookup:   os.LookupEnv,
	}
}

// Load reads and parses the catalog file
func (l *Loader) Load() (*File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read service catalog: %w", err)
	}

	data = l.expandTemplateVariables(data)

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse service catalog yaml: %w", err)
	}

	return &file, nil
}

var templateVar = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// expandTemplateVariables replaces {{NAME}} with the NAME environment
// variable so credentials stay out of the file. Unset variables become "".
func (l *Loader) expandTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAllFunc(data, func(m []byte) []byte {
		name := strings.TrimSpace(string(m[2 : len(m)-2]))
		v, _ := l.lookup(name)
		return []byte(v)
	})
}
