// Package cib loads, edits and saves CIB documents for the rule compiler.
//
// Document owns an etree document plus an index of every id attribute in it.
// Mutations take the document lock for the whole compile so the id predicate
// handed to the compiler sees a consistent snapshot.
package cib

import (
	"fmt"
	"os"
	"sync"

	"github.com/beevik/etree"
	"github.com/google/renameio/v2"

	"github.com/solatis/cibrule/internal/rules"
	"github.com/solatis/cibrule/internal/types"
)

const constraintsPath = "/cib/configuration/constraints"

const defaultFileMode os.FileMode = 0o644

// Document is a parsed CIB.
type Document struct {
	mu  sync.RWMutex
	doc *etree.Document
	ids map[string]bool
}

// Added describes a rule appended by AddRule.
type Added struct {
	Rule       *etree.Element
	RuleID     string
	Normalized string
	Warnings   []rules.Warning
}

// Parse reads a CIB from data.
func Parse(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidCIB, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "cib" {
		return nil, fmt.Errorf("%w: root element must be <cib>", types.ErrInvalidCIB)
	}
	if doc.FindElement(constraintsPath) == nil {
		return nil, fmt.Errorf("%w: missing configuration/constraints section", types.ErrInvalidCIB)
	}
	d := &Document{doc: doc}
	d.reindex()
	return d, nil
}

// Load reads a CIB file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CIB: %w", err)
	}
	return Parse(data)
}

// Bytes returns the document serialized with two-space indentation.
func (d *Document) Bytes() ([]byte, error) {
	d.mu.RLock()
	out := d.doc.Copy()
	d.mu.RUnlock()

	out.Indent(2)
	data, err := out.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize CIB: %w", err)
	}
	return data, nil
}

// Save writes the document to path, replacing it atomically. An existing
// file keeps its permissions; a new one is created with mode 0644.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	perm := defaultFileMode
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := renameio.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to replace CIB: %w", err)
	}
	return nil
}

// IDExists reports whether any element in the document carries id.
func (d *Document) IDExists(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ids[id]
}

// ConstraintIDs lists the ids of all constraints in document order.
func (d *Document) ConstraintIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var ids []string
	for _, el := range d.doc.FindElement(constraintsPath).ChildElements() {
		if id := el.SelectAttrValue("id", ""); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Constraint returns the constraint element with the given id.
// The element belongs to the document; callers must not mutate it
// concurrently with AddRule.
func (d *Document) Constraint(id string) (*etree.Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.constraint(id)
}

func (d *Document) constraint(id string) (*etree.Element, error) {
	for _, el := range d.doc.FindElement(constraintsPath).ChildElements() {
		if el.SelectAttrValue("id", "") == id {
			return el, nil
		}
	}
	return nil, fmt.Errorf("%w: '%s'", types.ErrConstraintNotFound, id)
}

// AddRule compiles argv into a new rule on the constraint. Unless
// allowDuplicate is set, a rule whose normalized export matches an existing
// rule of the constraint is rejected with types.ErrDuplicateRule.
func (d *Document) AddRule(constraintID string, argv []string, allowDuplicate bool) (*Added, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	constraint, err := d.constraint(constraintID)
	if err != nil {
		return nil, err
	}

	// Compile against a detached copy first so a duplicate leaves no trace
	trial, err := rules.Compile(constraint.Copy(), argv, d.idExists)
	if err != nil {
		return nil, err
	}
	normalized, err := rules.Export(trial.Rule, true)
	if err != nil {
		return nil, err
	}
	if !allowDuplicate {
		for _, existing := range constraint.SelectElements("rule") {
			text, err := rules.Export(existing, true)
			if err != nil {
				continue
			}
			if text == normalized {
				return nil, fmt.Errorf("%w: constraint '%s' already has rule '%s' (%s)",
					types.ErrDuplicateRule, constraintID, existing.SelectAttrValue("id", ""), text)
			}
		}
	}

	res, err := rules.Compile(constraint, argv, d.idExists)
	if err != nil {
		return nil, err
	}
	d.reindex()

	return &Added{
		Rule:       res.Rule,
		RuleID:     res.Rule.SelectAttrValue("id", ""),
		Normalized: normalized,
		Warnings:   res.Warnings,
	}, nil
}

// RuleText exports every rule of the constraint in document order.
func (d *Document) RuleText(constraintID string, normalize bool) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	constraint, err := d.constraint(constraintID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rule := range constraint.SelectElements("rule") {
		text, err := rules.Export(rule, normalize)
		if err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, nil
}

// idExists is the compiler predicate; the caller holds d.mu.
func (d *Document) idExists(id string) bool {
	return d.ids[id]
}

// reindex rebuilds the id index; the caller holds d.mu or owns d exclusively.
func (d *Document) reindex() {
	ids := make(map[string]bool)
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if id := el.SelectAttrValue("id", ""); id != "" {
			ids[id] = true
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	walk(d.doc.Root())
	d.ids = ids
}
