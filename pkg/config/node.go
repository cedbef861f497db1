// Package config exposes a read-only hierarchical view over a YAML document.
//
// Mapping keys become named child elements in document order. Items of a sequence
// are children that carry the name of the sequence itself, so
//
//	experiments:
//	  - type: progressplot
//	  - type: recordrmse
//
// iterates as two children named "experiments".
package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/df07/go-progressive-bpt/pkg/log"
)

var logger = log.New("config")

// ErrMissing is returned when a required element does not exist
var ErrMissing = errors.New("missing element")

// Node is one element of the configuration tree. The zero value is the empty node.
type Node struct {
	name   string
	node   *yaml.Node
	parent *yaml.Node
	index  int
}

// Parse reads a YAML document and returns its root element
func Parse(data []byte) (Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Node{}, fmt.Errorf("config: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return Node{}, errors.New("config: empty document")
	}
	return Node{name: "root", node: doc.Content[0]}, nil
}

// Empty reports whether the node does not exist
func (n Node) Empty() bool {
	return n.node == nil
}

// Name returns the element name
func (n Node) Name() string {
	return n.name
}

// Value returns the scalar value, or "" for non-scalar and empty nodes
func (n Node) Value() string {
	if n.node == nil || n.node.Kind != yaml.ScalarNode {
		return ""
	}
	return n.node.Value
}

// Child returns the first child with the given name, or the empty node
func (n Node) Child(name string) Node {
	if n.node == nil || n.node.Kind != yaml.MappingNode {
		return Node{}
	}
	for i := 0; i+1 < len(n.node.Content); i += 2 {
		if n.node.Content[i].Value == name {
			return Node{name: name, node: n.node.Content[i+1], parent: n.node, index: i}
		}
	}
	return Node{}
}

// FirstChild returns the first child element, or the empty node
func (n Node) FirstChild() Node {
	if n.node == nil {
		return Node{}
	}
	return n.childAt(n.node, 0, n.name)
}

// NextChild returns the next sibling, or the empty node
func (n Node) NextChild() Node {
	if n.parent == nil {
		return Node{}
	}
	step := 1
	if n.parent.Kind == yaml.MappingNode {
		step = 2
	}
	return n.childAt(n.parent, n.index+step, n.name)
}

// Children returns all child elements in order
func (n Node) Children() []Node {
	var children []Node
	for c := n.FirstChild(); !c.Empty(); c = c.NextChild() {
		children = append(children, c)
	}
	return children
}

// Decode unmarshals the node into v
func (n Node) Decode(v interface{}) error {
	if n.node == nil {
		return fmt.Errorf("%w: %q", ErrMissing, n.name)
	}
	if err := n.node.Decode(v); err != nil {
		return fmt.Errorf("config: invalid value for %q (line %d): %w", n.name, n.node.Line, err)
	}
	return nil
}

func (n Node) childAt(parent *yaml.Node, i int, sequenceName string) Node {
	switch parent.Kind {
	case yaml.MappingNode:
		if i+1 < len(parent.Content) {
			return Node{name: parent.Content[i].Value, node: parent.Content[i+1], parent: parent, index: i}
		}
	case yaml.SequenceNode:
		if i < len(parent.Content) {
			return Node{name: sequenceName, node: parent.Content[i], parent: parent, index: i}
		}
	}
	return Node{}
}

// ChildValueOrDefault decodes the named child, or returns def when it does not exist.
// A child that exists but cannot be decoded as T is an error.
func ChildValueOrDefault[T any](n Node, name string, def T) (T, error) {
	child := n.Child(name)
	if child.Empty() {
		logger.Debugf("missing %q element, using default value %v", name, def)
		return def, nil
	}
	var v T
	if err := child.Decode(&v); err != nil {
		return def, err
	}
	return v, nil
}

// ChildValue decodes the named child, which must exist
func ChildValue[T any](n Node, name string) (T, error) {
	var v T
	child := n.Child(name)
	if child.Empty() {
		return v, fmt.Errorf("%w: %q", ErrMissing, name)
	}
	err := child.Decode(&v)
	return v, err
}
