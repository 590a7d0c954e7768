// Package trie stores path prefixes split into segments. It backs path
// exclusion when walking a Move package.
package trie

import (
	"path/filepath"
	"sort"
	"strings"
)

// NodeIndex is the index of a node in the arena.
type NodeIndex int

// Arena holds every node of a trie in one slice. Children refer to each
// other by index.
type Arena struct {
	nodes []arenaNode
}

type arenaNode struct {
	children map[string]NodeIndex
	isEnd    bool
}

// NewArena creates an arena holding only the root node.
func NewArena() *Arena {
	arena := &Arena{nodes: make([]arenaNode, 0, 64)}
	arena.newNode()
	return arena
}

func (a *Arena) newNode() NodeIndex {
	idx := NodeIndex(len(a.nodes))
	a.nodes = append(a.nodes, arenaNode{children: make(map[string]NodeIndex)})
	return idx
}

// Insert adds a sequence of segments.
func (a *Arena) Insert(sequence []string) {
	current := NodeIndex(0)
	for _, part := range sequence {
		childIdx, exists := a.nodes[current].children[part]
		if !exists {
			childIdx = a.newNode()
			a.nodes[current].children[part] = childIdx
		}
		current = childIdx
	}
	a.nodes[current].isEnd = true
}

// HasPrefixOf reports whether an inserted sequence is a prefix of sequence
// or equal to it.
func (a *Arena) HasPrefixOf(sequence []string) bool {
	current := NodeIndex(0)
	if a.nodes[current].isEnd {
		return true
	}
	for _, part := range sequence {
		next, ok := a.nodes[current].children[part]
		if !ok {
			return false
		}
		if a.nodes[next].isEnd {
			return true
		}
		current = next
	}
	return false
}

// DebugString renders the trie with sorted keys, marking sequence ends
// with "*".
func (a *Arena) DebugString() string {
	return a.debugStringNode(NodeIndex(0))
}

func (a *Arena) debugStringNode(idx NodeIndex) string {
	node := a.nodes[idx]
	var sb strings.Builder
	if node.isEnd {
		sb.WriteString("*")
	}

	keys := make([]string, 0, len(node.children))
	for key := range node.children {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteString("(")
		sb.WriteString(a.debugStringNode(node.children[key]))
		sb.WriteString(")")
	}
	return sb.String()
}

// Trie is a set of file system paths answering "is this path below one
// of them" queries.
type Trie struct {
	arena *Arena
	size  int
}

// New returns an empty Trie.
func New() *Trie {
	return &Trie{arena: NewArena()}
}

// Insert adds path. It is cleaned before being split.
func (t *Trie) Insert(path string) {
	t.arena.Insert(Segments(path))
	t.size++
}

// Covers reports whether path equals an inserted path or lies below one.
func (t *Trie) Covers(path string) bool {
	if t.size == 0 {
		return false
	}
	return t.arena.HasPrefixOf(Segments(path))
}

// Len returns the number of inserted paths.
func (t *Trie) Len() int {
	return t.size
}

// DebugString renders the trie for tests and logs.
func (t *Trie) DebugString() string {
	return t.arena.DebugString()
}

// Segments splits a cleaned path into its elements. The root of an
// absolute path is kept as an empty first segment.
func Segments(path string) []string {
	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == "." {
		return nil
	}
	return strings.Split(clean, "/")
}
