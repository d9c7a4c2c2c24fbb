// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package catalog loads the tag and control catalogue seeded into a new store.
//
// The built-in catalogue carries five tags and nine ISO27001 / NIST-CSF
// controls. A deployment may replace it with its own YAML file of the same
// shape; either way it is only inserted into empty tables.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/storage"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtin []byte

// ErrInvalidCatalog indicates a catalogue file that could not be used.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is a set of tags and controls.
type Catalog struct {
	Tags     []*core.Tag
	Controls []*core.Control
}

type document struct {
	Tags []struct {
		Name    string `yaml:"name"`
		Keyword string `yaml:"keyword"`
	} `yaml:"tags"`
	Controls []struct {
		Framework   string `yaml:"framework"`
		Code        string `yaml:"code"`
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
	} `yaml:"controls"`
}

// Default returns the built-in catalogue.
func Default() *Catalog {
	c, err := Parse(bytes.NewReader(builtin))
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// Load reads a catalogue file. An empty path returns the built-in catalogue.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a YAML catalogue. Unknown fields, invalid
// entries and duplicate tag names or (framework, code) pairs are rejected.
func Parse(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	c := &Catalog{}
	tagNames := make(map[string]bool, len(doc.Tags))
	for i, t := range doc.Tags {
		tag := &core.Tag{Name: t.Name, Keyword: t.Keyword}
		if err := core.ValidateTag(tag); err != nil {
			return nil, fmt.Errorf("%w: tag %d: %w", ErrInvalidCatalog, i, err)
		}
		if tagNames[tag.Name] {
			return nil, fmt.Errorf("%w: duplicate tag %q", ErrInvalidCatalog, tag.Name)
		}
		tagNames[tag.Name] = true
		c.Tags = append(c.Tags, tag)
	}

	codes := make(map[string]bool, len(doc.Controls))
	for i, ctl := range doc.Controls {
		control := &core.Control{
			Framework:   ctl.Framework,
			Code:        ctl.Code,
			Title:       ctl.Title,
			Description: ctl.Description,
		}
		if err := core.ValidateControl(control); err != nil {
			return nil, fmt.Errorf("%w: control %d: %w", ErrInvalidCatalog, i, err)
		}
		key := control.Framework + "\x00" + control.Code
		if codes[key] {
			return nil, fmt.Errorf("%w: duplicate control %s %s", ErrInvalidCatalog, control.Framework, control.Code)
		}
		codes[key] = true
		c.Controls = append(c.Controls, control)
	}
	return c, nil
}

// Seed inserts the catalogue into repo. Tags are only inserted into an empty
// tag table and controls into an empty control table.
func (c *Catalog) Seed(ctx context.Context, repo storage.CatalogRepository) (tags int, controls int, err error) {
	return repo.SeedCatalog(ctx, c.Tags, c.Controls)
}
