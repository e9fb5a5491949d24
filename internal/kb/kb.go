// Package kb loads the support knowledge base used for retrieval.
// The corpus is a YAML file of policy and help-center snippets; a small
// built-in corpus is embedded so the service works without any file
// configured.
package kb

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed kb.yaml
var builtinCorpus []byte

// Document is one retrievable snippet.
type Document struct {
	ID     string   `yaml:"id"`
	Source string   `yaml:"source"`
	Title  string   `yaml:"title"`
	Text   string   `yaml:"text"`
	Tags   []string `yaml:"tags"`
}

// Corpus is the loaded knowledge base.
type Corpus struct {
	Documents []Document `yaml:"documents"`
}

// Load reads the corpus from path. An empty path loads the embedded
// built-in corpus.
func Load(path string) (*Corpus, error) {
	data := builtinCorpus
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("kb: read %s: %w", path, err)
		}
	}

	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("kb: parse corpus: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("kb: invalid corpus: %w", err)
	}
	return &c, nil
}

func (c *Corpus) validate() error {
	if len(c.Documents) == 0 {
		return fmt.Errorf("no documents")
	}
	seen := make(map[string]struct{}, len(c.Documents))
	for i, d := range c.Documents {
		if d.ID == "" {
			return fmt.Errorf("document %d: missing id", i)
		}
		if d.Text == "" {
			return fmt.Errorf("document %s: missing text", d.ID)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("document %s: duplicate id", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}
