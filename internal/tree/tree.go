// Package tree loads the conversation decision tree from its YAML
// definition into the immutable node graph the engine traverses.
//
// The format supports named shared subtrees (`shared:`) referenced with
// `ref:` from any branch. References resolve to the same *domain.Node, so
// repeated structure (the per-university menus, say) is aliased rather than
// copied and memory stays bounded. The graph is never mutated after loading,
// which makes the aliasing safe.
package tree

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"zivai/internal/domain"
)

//go:embed tree.yaml
var defaultTree []byte

// Tree is the loaded, immutable decision graph.
type Tree struct {
	root  *domain.Node
	index map[string]*domain.Node
}

// Root returns the entry node.
func (t *Tree) Root() *domain.Node { return t.root }

// Node resolves a node ID stored in a session back to the graph.
func (t *Tree) Node(id string) (*domain.Node, error) {
	n, ok := t.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNodeNotFound, id)
	}
	return n, nil
}

// Len returns the number of distinct nodes (shared subtrees count once).
func (t *Tree) Len() int { return len(t.index) }

// Load reads the tree definition from a file, or the embedded default when
// path is empty.
func Load(path string) (*Tree, error) {
	data := defaultTree
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read tree definition: %w", err)
		}
	}
	return Parse(data)
}

// Parse builds and validates the tree from YAML.
func Parse(data []byte) (*Tree, error) {
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse tree definition: %w", err)
	}
	if spec.Root == nil {
		return nil, fmt.Errorf("tree definition has no root node")
	}

	b := &builder{
		shared:   spec.Shared,
		resolved: make(map[string]*domain.Node),
		building: make(map[string]bool),
		index:    make(map[string]*domain.Node),
	}

	root, err := b.build("root", spec.Root)
	if err != nil {
		return nil, err
	}

	return &Tree{root: root, index: b.index}, nil
}

// fileSpec is the top-level YAML document.
type fileSpec struct {
	Shared map[string]*nodeSpec `yaml:"shared"`
	Root   *nodeSpec            `yaml:"root"`
}

type nodeSpec struct {
	Templates templateList `yaml:"templates"`
	Next      []edgeSpec   `yaml:"next"`
}

// edgeSpec is one outgoing edge: a keyword plus either an inline node or a
// reference to a shared subtree.
type edgeSpec struct {
	Keyword string    `yaml:"keyword"`
	Node    *nodeSpec `yaml:"node"`
	Ref     string    `yaml:"ref"`
}

// templateList accepts either a single template ID or a sequence.
type templateList []string

func (l *templateList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = templateList{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := value.Decode(&ss); err != nil {
			return err
		}
		*l = templateList(ss)
		return nil
	default:
		return fmt.Errorf("templates must be a string or a list of strings")
	}
}

type builder struct {
	shared   map[string]*nodeSpec
	resolved map[string]*domain.Node
	building map[string]bool // ref-cycle detection
	index    map[string]*domain.Node
}

// build converts a nodeSpec into a domain node, recursing into children.
// Anonymous children get IDs derived from the parent and keyword, so every
// node is addressable from a persisted session.
func (b *builder) build(id string, spec *nodeSpec) (*domain.Node, error) {
	if len(spec.Templates) == 0 {
		return nil, fmt.Errorf("node %q has no templates", id)
	}

	node := &domain.Node{
		ID:        id,
		Templates: []string(spec.Templates),
	}
	// Register before descending so session lookups work for every node.
	b.index[id] = node

	seen := make(map[string]bool)
	for _, edge := range spec.Next {
		keyword := strings.TrimSpace(edge.Keyword)
		if keyword == "" {
			return nil, fmt.Errorf("node %q has a transition with an empty keyword", id)
		}
		folded := strings.ToLower(keyword)
		if seen[folded] {
			return nil, fmt.Errorf("node %q declares keyword %q twice", id, keyword)
		}
		seen[folded] = true

		var (
			child *domain.Node
			err   error
		)
		switch {
		case edge.Ref != "" && edge.Node != nil:
			return nil, fmt.Errorf("node %q keyword %q: ref and node are mutually exclusive", id, keyword)
		case edge.Ref != "":
			child, err = b.resolveRef(edge.Ref)
		case edge.Node != nil:
			child, err = b.build(id+"/"+slug(keyword), edge.Node)
		default:
			return nil, fmt.Errorf("node %q keyword %q has neither ref nor node", id, keyword)
		}
		if err != nil {
			return nil, err
		}

		node.Transitions = append(node.Transitions, domain.Transition{
			Keyword: keyword,
			To:      child,
		})
	}

	return node, nil
}

// resolveRef builds a shared subtree on first use and aliases it afterwards.
// A ref chain that loops back on itself is rejected, so the finished graph
// is guaranteed acyclic.
func (b *builder) resolveRef(name string) (*domain.Node, error) {
	if node, ok := b.resolved[name]; ok {
		return node, nil
	}
	if b.building[name] {
		return nil, fmt.Errorf("shared subtree %q references itself", name)
	}
	spec, ok := b.shared[name]
	if !ok {
		return nil, fmt.Errorf("unknown shared subtree %q", name)
	}

	b.building[name] = true
	node, err := b.build(name, spec)
	delete(b.building, name)
	if err != nil {
		return nil, err
	}

	b.resolved[name] = node
	return node, nil
}

// slug derives a node-ID fragment from a keyword.
func slug(keyword string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(keyword) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteByte('-')
		}
	}
	return sb.String()
}
