// Package dag keeps processing chains of operations together with the
// output each stage has already computed.
//
// A Chain starts with a source stage; every appended stage reads the output
// of the previous one. A Head is a consumer's view of a chain: it tells
// which samples are needed and reports the ones that are not cached yet.
package dag

import (
	"errors"
	"fmt"
	"sync"

	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/log"
	"github.com/davidhesselbom/freq-sub001/operation"
)

var (
	// ErrNoSource is returned when chain is created without source.
	ErrNoSource = errors.New("chain source is not defined")
	// ErrNotInChain is returned when node doesn't belong to the chain.
	ErrNotInChain = errors.New("node is not in chain")
	// ErrSourceRemoval is returned when source of the chain is removed.
	ErrSourceRemoval = errors.New("source can't be removed")
)

// Chain is an ordered sequence of nodes, source first.
type Chain struct {
	name string
	log  log.Logger

	mu    sync.RWMutex
	nodes []*Node
	heads map[*Head]struct{}
}

// Option provides a way to set functional parameters to chain.
type Option func(c *Chain) error

// WithLogger sets logger to chain. If this option is not provided, silent
// logger is used.
func WithLogger(logger log.Logger) Option {
	return func(c *Chain) error {
		c.log = logger
		return nil
	}
}

// WithName sets name to chain.
func WithName(n string) Option {
	return func(c *Chain) error {
		c.name = n
		return nil
	}
}

// NewChain creates a chain with a source stage.
func NewChain(source operation.Desc, options ...Option) (*Chain, error) {
	if source == nil {
		return nil, ErrNoSource
	}
	c := &Chain{
		log:   log.Silent(),
		heads: make(map[*Head]struct{}),
	}
	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}
	c.nodes = []*Node{NewNode(source, nil)}
	return c, nil
}

// Name of the chain.
func (c *Chain) Name() string {
	return c.name
}

// Nodes returns stages of the chain, source first.
func (c *Chain) Nodes() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	nodes := make([]*Node, len(c.nodes))
	copy(nodes, c.nodes)
	return nodes
}

// Source returns the first node.
func (c *Chain) Source() *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodes[0]
}

// Terminal returns the last node, its output is the output of the chain.
func (c *Chain) Terminal() *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodes[len(c.nodes)-1]
}

// Append adds a stage on top of the chain.
func (c *Chain) Append(desc operation.Desc) *Node {
	n := c.append(desc)

	c.log.WithField("chain", c.name).Debugf("appended %s", desc.Name())
	c.notify()
	return n
}

func (c *Chain) append(desc operation.Desc) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := NewNode(desc, c.nodes[len(c.nodes)-1])
	c.nodes = append(c.nodes, n)
	return n
}

// Remove deletes a stage. Its cache is discarded and everything computed
// on top of it is invalidated.
func (c *Chain) Remove(n *Node) error {
	if err := c.remove(n); err != nil {
		return err
	}
	c.log.WithField("chain", c.name).Debugf("removed %s", n.Name())
	c.notify()
	return nil
}

func (c *Chain) remove(n *Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.index(n)
	switch {
	case idx < 0:
		return fmt.Errorf("error removing %s: %w", n.Name(), ErrNotInChain)
	case idx == 0:
		return fmt.Errorf("error removing %s: %w", n.Name(), ErrSourceRemoval)
	}
	child := n.Child()
	n.detach()
	c.nodes = append(c.nodes[:idx], c.nodes[idx+1:]...)
	if idx < len(c.nodes) {
		c.nodes[idx].setChild(child)
		c.invalidateFrom(idx, interval.From(interval.All))
	}
	return nil
}

// Replace swaps the stage description. The new node starts with an empty
// cache and everything computed on top of it is invalidated.
func (c *Chain) Replace(n *Node, desc operation.Desc) (*Node, error) {
	replacement, err := c.replace(n, desc)
	if err != nil {
		return nil, err
	}
	c.log.WithField("chain", c.name).Debugf("replaced %s with %s", n.Name(), desc.Name())
	c.notify()
	return replacement, nil
}

func (c *Chain) replace(n *Node, desc operation.Desc) (*Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.index(n)
	if idx < 0 {
		return nil, fmt.Errorf("error replacing %s: %w", n.Name(), ErrNotInChain)
	}
	replacement := NewNode(desc, n.Child())
	n.detach()
	c.nodes[idx] = replacement
	if idx+1 < len(c.nodes) {
		c.nodes[idx+1].setChild(replacement)
		c.invalidateFrom(idx+1, interval.From(interval.All))
	}
	return replacement, nil
}

// Invalidate marks source samples as changed. Affected samples of every
// stage are recomputed when requested again.
func (c *Chain) Invalidate(s interval.Intervals) {
	c.InvalidateNode(c.Source(), s)
}

// InvalidateNode marks output samples of the node as changed together
// with samples of the stages on top of it.
func (c *Chain) InvalidateNode(n *Node, s interval.Intervals) {
	if !c.invalidateNode(n, s) {
		return
	}
	c.log.WithField("chain", c.name).Debugf("invalidated %v in %s", s, n.Name())
	c.notify()
}

func (c *Chain) invalidateNode(n *Node, s interval.Intervals) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := c.index(n)
	if idx < 0 {
		return false
	}
	c.invalidateFrom(idx, s)
	return true
}

// invalidateFrom must be called with chain lock held.
func (c *Chain) invalidateFrom(idx int, s interval.Intervals) {
	c.nodes[idx].Invalidate(s)
	for k := idx + 1; k < len(c.nodes) && !s.Empty(); k++ {
		s = c.nodes[k].affected(s)
		c.nodes[k].Invalidate(s)
	}
}

func (c *Chain) index(n *Node) int {
	for i := range c.nodes {
		if c.nodes[i] == n {
			return i
		}
	}
	return -1
}

// notify wakes schedulers of all heads.
func (c *Chain) notify() {
	for _, h := range c.registered() {
		h.wake()
	}
}

func (c *Chain) registered() []*Head {
	c.mu.RLock()
	defer c.mu.RUnlock()
	heads := make([]*Head, 0, len(c.heads))
	for h := range c.heads {
		heads = append(heads, h)
	}
	return heads
}
