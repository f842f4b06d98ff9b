package searchquery

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed params.yaml
var paramsYAML []byte

// Param is one accepted parameter spelling.
type Param struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Vocabulary  string `json:"vocabulary,omitempty"`
}

// Vocabularies maps a vocabulary id to its values.
type Vocabularies map[string][]string

// Registry is the set of recognized parameters and their static value lists.
type Registry struct {
	params []Param
	byName map[string]int
	static Vocabularies
}

type registryFile struct {
	Params []struct {
		Names       []string `yaml:"names"`
		Description string   `yaml:"description"`
		Vocabulary  string   `yaml:"vocabulary"`
	} `yaml:"params"`
	Vocabularies map[string][]string `yaml:"vocabularies"`
}

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	return ParseRegistry(paramsYAML)
})

// DefaultRegistry returns the registry built from the embedded parameter file.
func DefaultRegistry() (*Registry, error) {
	return defaultRegistry()
}

// ParseRegistry builds a registry from YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse parameter registry: %w", err)
	}

	r := &Registry{
		byName: make(map[string]int),
		static: Vocabularies(file.Vocabularies),
	}
	if r.static == nil {
		r.static = Vocabularies{}
	}
	for _, entry := range file.Params {
		if len(entry.Names) == 0 {
			return nil, fmt.Errorf("parameter registry: entry %q has no names", entry.Description)
		}
		for _, name := range entry.Names {
			key := strings.ToLower(name)
			if _, dup := r.byName[key]; dup {
				return nil, fmt.Errorf("parameter registry: duplicate name %q", name)
			}
			r.byName[key] = len(r.params)
			r.params = append(r.params, Param{
				Name:        name,
				Description: entry.Description,
				Vocabulary:  entry.Vocabulary,
			})
		}
	}
	return r, nil
}

// Names returns every parameter spelling in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.params))
	for i, p := range r.params {
		names[i] = p.Name
	}
	return names
}

// Params returns every parameter in registry order.
func (r *Registry) Params() []Param {
	return append([]Param(nil), r.params...)
}

// Param looks up a parameter by name, ignoring case.
func (r *Registry) Param(name string) (Param, bool) {
	i, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return Param{}, false
	}
	return r.params[i], true
}

// VocabularyIDs returns the distinct vocabulary ids referenced by parameters.
func (r *Registry) VocabularyIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, p := range r.params {
		if p.Vocabulary == "" || seen[p.Vocabulary] {
			continue
		}
		seen[p.Vocabulary] = true
		ids = append(ids, p.Vocabulary)
	}
	return ids
}

// Values returns the static values for id followed by the runtime ones.
func (r *Registry) Values(id string, runtime Vocabularies) []string {
	static := r.static[id]
	dynamic := runtime[id]
	out := make([]string, 0, len(static)+len(dynamic))
	out = append(out, static...)
	out = append(out, dynamic...)
	return out
}
