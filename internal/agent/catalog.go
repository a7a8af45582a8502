package agent

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrUnknownModel is returned when a model is not in the catalog.
var ErrUnknownModel = errors.New("agent: unknown model") //nolint:gochecknoglobals // sentinel error

// Model describes one entry in the model catalog.
type Model struct {
	Name          string `json:"name"           yaml:"name"`
	Backend       string `json:"backend"        yaml:"backend"`
	ContextWindow int    `json:"context_window" yaml:"context_window"`
}

// Catalog maps model names to the backend that serves them. Later
// entries override earlier ones, so a catalog file can repoint a
// built-in model.
type Catalog struct {
	models []Model
	index  map[string]Model
}

func builtinModels() []Model {
	return []Model{
		{Name: "gpt-4o", Backend: "openai", ContextWindow: 128000},
		{Name: "gpt-4o-mini", Backend: "openai", ContextWindow: 128000},
		{Name: "gpt-4-turbo", Backend: "openai", ContextWindow: 128000},
		{Name: "gpt-3.5-turbo", Backend: "openai", ContextWindow: 16385},
	}
}

func NewCatalog(models ...Model) *Catalog {
	c := &Catalog{index: make(map[string]Model, len(models))}
	for _, m := range models {
		if _, seen := c.index[m.Name]; !seen {
			c.models = append(c.models, m)
		} else {
			for i := range c.models {
				if c.models[i].Name == m.Name {
					c.models[i] = m
					break
				}
			}
		}
		c.index[m.Name] = m
	}
	return c
}

// LoadCatalog merges the models from a YAML file over the built-ins. An
// empty path yields just the built-ins.
func LoadCatalog(path string) (*Catalog, error) {
	models := builtinModels()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("agent.LoadCatalog: %w", err)
		}
		var file struct {
			Models []Model `yaml:"models"`
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("agent.LoadCatalog: %w", err)
		}
		models = append(models, file.Models...)
	}

	return NewCatalog(models...), nil
}

// Models returns the catalog entries in declaration order.
func (c *Catalog) Models() []Model {
	out := make([]Model, len(c.models))
	copy(out, c.models)
	return out
}

// Resolve returns the backend name serving model.
func (c *Catalog) Resolve(model string) (string, error) {
	m, ok := c.index[model]
	if !ok {
		return "", fmt.Errorf("agent.Catalog.Resolve(%q): %w", model, ErrUnknownModel)
	}
	return m.Backend, nil
}
