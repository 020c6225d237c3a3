package transformer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk format for transformer definitions: a YAML
// document carrying an ordered sequence of definition records.
//
//	transformers:
//	  - name: agent_spawned_monitor
//	    source: "agent:spawned"
//	    target: "monitor:entity_created"
//	    mapping:
//	      entity_id: "{{agent_id}}"
type Document struct {
	Transformers []Definition `yaml:"transformers"`
}

// ParseDocument decodes one or more YAML documents from data and returns
// the definitions in document order. Unknown fields are rejected so that
// a typo in a definition file ("sorce:") fails loudly instead of silently
// producing a definition that never matches.
func ParseDocument(data []byte) ([]Definition, error) {
	var defs []Definition

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	for {
		var doc Document
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("transformer: failed to parse document: %w", err)
		}
		defs = append(defs, doc.Transformers...)
	}
	return defs, nil
}

// LoadDocument parses data and registers every definition it contains
// into the given scope, in document order. The scope stamped here
// overrides any scope already set on the parsed definitions.
//
// Loading is not transactional across definitions: definitions preceding
// a failing one stay registered, and the error identifies the failure.
// Callers that need all-or-nothing behavior should UnloadScope on error.
func (r *Registry) LoadDocument(data []byte, scope Scope) (int, error) {
	defs, err := ParseDocument(data)
	if err != nil {
		return 0, err
	}

	for i, def := range defs {
		def.Scope = scope
		if err := r.Register(def); err != nil {
			return i, fmt.Errorf("transformer: definition %d of %d: %w", i+1, len(defs), err)
		}
	}
	return len(defs), nil
}

// LoadFile reads a definition file and registers its contents into the
// given scope.
func (r *Registry) LoadFile(path string, scope Scope) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("transformer: failed to read %s: %w", path, err)
	}

	n, err := r.LoadDocument(data, scope)
	if err != nil {
		return n, fmt.Errorf("transformer: %s: %w", path, err)
	}

	r.logger.Info("transformer file loaded",
		"path", path,
		"scope", string(scope),
		"count", n,
	)
	return n, nil
}

// LoadDir loads every .yaml/.yml file directly under dir into the given
// scope. Files are loaded in lexical name order so that registration
// order is stable across runs; subdirectories are ignored.
func (r *Registry) LoadDir(dir string, scope Scope) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("transformer: failed to read directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		n, err := r.LoadFile(filepath.Join(dir, name), scope)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
