package pipeline

import (
	_ "embed"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// Prompts holds the system prompt and one user prompt template per node.
type Prompts struct {
	System string            `yaml:"system"`
	Nodes  map[string]string `yaml:"nodes"`

	templates map[string]*template.Template
}

// LoadPrompts parses prompt definitions from YAML.
func LoadPrompts(data []byte) (*Prompts, error) {
	p := &Prompts{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal prompts")
	}

	p.templates = make(map[string]*template.Template, len(p.Nodes))
	for name, text := range p.Nodes {
		tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse prompt %s", name)
		}
		p.templates[name] = tmpl
	}
	return p, nil
}

// LoadPromptsFile reads prompt definitions from a YAML file.
func LoadPromptsFile(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read prompts file %s", path)
	}
	return LoadPrompts(data)
}

var defaultPrompts = sync.OnceValues(func() (*Prompts, error) {
	return LoadPrompts(defaultPromptsYAML)
})

// DefaultPrompts returns the prompts embedded in the binary.
func DefaultPrompts() (*Prompts, error) {
	return defaultPrompts()
}

// Render executes the template of a node against the state.
func (p *Prompts) Render(node string, s State) (string, error) {
	tmpl, ok := p.templates[node]
	if !ok {
		return "", errors.Errorf("no prompt for node %s", node)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, s); err != nil {
		return "", errors.Wrapf(err, "failed to render prompt %s", node)
	}
	return sb.String(), nil
}

// Validate checks that every node has a prompt.
func (p *Prompts) Validate(nodes ...string) error {
	for _, n := range nodes {
		if _, ok := p.templates[n]; !ok {
			return errors.Errorf("missing prompt for node %s", n)
		}
	}
	return nil
}
