// Package config loads the graph description file: metadata, modules,
// transformers and pipes. Per-component parameter blocks are kept as raw
// yaml.Node values and decoded into their concrete type by the graph
// builder once it knows which module/transformer type tag they belong
// to.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Entry is one named, typed item in the modules or transformers list. Type
// is the discriminant used to look up both the concrete config struct and
// the Builder/Config implementation it decodes into; Params holds the
// rest of the block undecoded until that lookup happens.
type Entry struct {
	Name   string    `yaml:"name"`
	Type   string    `yaml:"type"`
	Params yaml.Node `yaml:"params"`
}

type Pipe struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type Graph struct {
	Metadata     Metadata `yaml:"metadata"`
	Modules      []Entry  `yaml:"modules"`
	Transformers []Entry  `yaml:"transformers"`
	Pipes        []Pipe   `yaml:"pipes"`
}

// Load reads and parses a graph file from disk.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &g, nil
}

// DecodeInto decodes an Entry's raw Params block into T. A graph file's
// params block only becomes a concrete struct once the caller knows T
// from the entry's type tag.
func DecodeInto[T any](params yaml.Node) (T, error) {
	var v T
	if params.Kind == 0 {
		return v, nil
	}
	if err := params.Decode(&v); err != nil {
		return v, fmt.Errorf("config: decode params: %w", err)
	}
	return v, nil
}
