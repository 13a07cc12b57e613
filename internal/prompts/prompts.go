// Package prompts renders the oracle prompt templates bundled in prompts.yml.
package prompts

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yml
var bundled []byte

type entry struct {
	Prompt string `yaml:"prompt"`
}

var (
	once      sync.Once
	templates map[string]*template.Template
	loadErr   error
)

func load() {
	var groups map[string]map[string]entry
	if err := yaml.Unmarshal(bundled, &groups); err != nil {
		loadErr = fmt.Errorf("parse prompts: %w", err)
		return
	}
	templates = map[string]*template.Template{}
	for g, names := range groups {
		for n, e := range names {
			key := g + ":" + n
			t, err := template.New(key).Option("missingkey=error").Parse(e.Prompt)
			if err != nil {
				loadErr = fmt.Errorf("prompt %s: %w", key, err)
				return
			}
			templates[key] = t
		}
	}
}

// Render executes the prompt addressed as "group:name" with data.
func Render(key string, data any) (string, error) {
	once.Do(load)
	if loadErr != nil {
		return "", loadErr
	}
	t, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", key)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", key, err)
	}
	return b.String(), nil
}

// Keys lists every bundled prompt.
func Keys() []string {
	once.Do(load)
	out := make([]string, 0, len(templates))
	for k := range templates {
		out = append(out, k)
	}
	return out
}
