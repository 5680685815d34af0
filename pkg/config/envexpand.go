package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go templates
// with {{.VAR_NAME}} syntax. Plain $ characters are left untouched so that
// regex patterns and shell snippets in config values survive expansion.
//
// Missing variables expand to empty string; validation catches required
// fields that end up empty. Malformed template syntax returns the input
// unchanged, which lets template-free YAML pass through.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		// Split on the first = only; values may contain = themselves.
		if idx := strings.IndexByte(env, '='); idx > 0 {
			envMap[env[:idx]] = env[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		return data
	}
	return buf.Bytes()
}
