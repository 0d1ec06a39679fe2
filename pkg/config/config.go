// Package config reads the YAML description of a feature layout.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// CategoricalFeature is a categorical data column. A zero Cardinality is
// derived from the distinct values found in the data.
type CategoricalFeature struct {
	Column       string `yaml:"column"`
	Cardinality  int    `yaml:"cardinality"`
	EmbeddingDim int    `yaml:"embedding_dim"`
}

type Config struct {
	TimeSteps          int                  `yaml:"time_steps"`
	ItemColumn         string               `yaml:"item_column"`
	StaticCategorical  []CategoricalFeature `yaml:"static_categorical"`
	StaticReal         []string             `yaml:"static_real"`
	DynamicCategorical []CategoricalFeature `yaml:"dynamic_categorical"`
	DynamicReal        []string             `yaml:"dynamic_real"`
	EmbedStatic        bool                 `yaml:"embed_static"`
	EmbedDynamic       bool                 `yaml:"embed_dynamic"`
	Seed               uint64               `yaml:"seed"`
}

func Load(fileName string) (*Config, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("error opening config file %s: %w", fileName, err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (*Config, error) {
	c := &Config{Seed: 42}
	if err := yaml.NewDecoder(r).Decode(c); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.TimeSteps <= 0 {
		return fmt.Errorf("%w: time_steps must be positive", ErrInvalidConfig)
	}
	if c.ItemColumn == "" {
		return fmt.Errorf("%w: item_column is required", ErrInvalidConfig)
	}
	seen := map[string]bool{c.ItemColumn: true}
	check := func(column string) error {
		if column == "" {
			return fmt.Errorf("%w: empty column name", ErrInvalidConfig)
		}
		if seen[column] {
			return fmt.Errorf("%w: column %s used more than once", ErrInvalidConfig, column)
		}
		seen[column] = true
		return nil
	}
	for _, group := range [][]CategoricalFeature{c.StaticCategorical, c.DynamicCategorical} {
		for _, f := range group {
			if err := check(f.Column); err != nil {
				return err
			}
			if f.Cardinality < 0 {
				return fmt.Errorf("%w: negative cardinality for %s", ErrInvalidConfig, f.Column)
			}
		}
	}
	for _, f := range c.StaticReal {
		if err := check(f); err != nil {
			return err
		}
	}
	for _, f := range c.DynamicReal {
		if err := check(f); err != nil {
			return err
		}
	}
	if c.EmbedStatic {
		if err := checkEmbeddings(c.StaticCategorical); err != nil {
			return err
		}
	}
	if c.EmbedDynamic {
		if err := checkEmbeddings(c.DynamicCategorical); err != nil {
			return err
		}
	}
	if len(seen) == 1 {
		return fmt.Errorf("%w: no feature columns", ErrInvalidConfig)
	}
	return nil
}

func checkEmbeddings(features []CategoricalFeature) error {
	for _, f := range features {
		if f.EmbeddingDim <= 0 {
			return fmt.Errorf("%w: embedded column %s needs a positive embedding_dim", ErrInvalidConfig, f.Column)
		}
	}
	return nil
}
