// Package core implements the visual state mapping and interpolation
// engines that drive the plant scene from telemetry snapshots.
package core

import (
	"sort"
	"strings"

	"github.com/aquasight/plant-visualizer/model"
	"github.com/aquasight/plant-visualizer/scene"
)

// ComponentClass describes what role an indexed node plays.
type ComponentClass int

const (
	ClassPipe ComponentClass = iota
	ClassWater
	ClassMixer
	ClassScraper
	ClassSludge
	ClassPump
	ClassFilter
	ClassTank
)

func (c ComponentClass) String() string {
	switch c {
	case ClassPipe:
		return "pipe"
	case ClassWater:
		return "water"
	case ClassMixer:
		return "mixer"
	case ClassScraper:
		return "scraper"
	case ClassSludge:
		return "sludge"
	case ClassPump:
		return "pump"
	case ClassFilter:
		return "filter"
	default:
		return "tank"
	}
}

// indexRule classifies a node whose lowercase name contains every pattern.
// Rules are evaluated in declaration order; the first match wins, so more
// specific rules (sub-meshes, pipes) must precede the bare tank-body rules.
type indexRule struct {
	patterns []string
	key      string // "" means: derive the key from the node name
	class    ComponentClass
}

var defaultRules = []indexRule{
	// Pipes first: "Pipe_RWT_CFT" would otherwise match the RWT body rule.
	{patterns: []string{"pipe"}, class: ClassPipe},

	// Water sub-meshes present in the source model.
	{patterns: []string{"rwt", "water"}, key: "RWT_Water", class: ClassWater},
	{patterns: []string{"cft", "water"}, key: "CFT_Water", class: ClassWater},
	{patterns: []string{"cst", "water"}, key: "CST_Water", class: ClassWater},
	{patterns: []string{"slt", "cone"}, key: "SLT_Water_Cone", class: ClassWater},
	{patterns: []string{"slt", "water"}, key: "SLT_Water", class: ClassWater},
	{patterns: []string{"sct", "water"}, key: "SCT_Water", class: ClassWater},
	{patterns: []string{"cwt", "water"}, key: "CWT_Water", class: ClassWater},

	// Moving sub-elements.
	{patterns: []string{"mixer"}, key: "CFT_Mixer", class: ClassMixer},
	{patterns: []string{"scraper"}, class: ClassScraper},
	{patterns: []string{"sludge"}, key: "SLT_Sludge", class: ClassSludge},

	// Actuators and process units.
	{patterns: []string{"cdp"}, key: model.KeyCDP, class: ClassPump},
	{patterns: []string{"pps"}, key: model.KeyPPS, class: ClassPump},
	{patterns: []string{"filter"}, key: "Filter", class: ClassFilter},

	// Tank bodies last. Multi-instance bodies ("SCT_1", "SCT_2") accumulate
	// under one key in scene traversal order.
	{patterns: []string{"rwt"}, key: model.KeyRWT, class: ClassTank},
	{patterns: []string{"cft"}, key: model.KeyCFT, class: ClassTank},
	{patterns: []string{"cst"}, key: model.KeyCST, class: ClassTank},
	{patterns: []string{"slt"}, key: model.KeySLT, class: ClassTank},
	{patterns: []string{"sct"}, key: model.KeySCT, class: ClassTank},
	{patterns: []string{"cwt"}, key: model.KeyCWT, class: ClassTank},
}

// ComponentIndex maps semantic component keys to the scene nodes that
// realize them. Built once after load; read-only afterwards except for
// material cloning on the nodes themselves.
type ComponentIndex struct {
	nodes   map[string][]*scene.Node
	classes map[string]ComponentClass
}

// BuildComponentIndex classifies every scene node against the rule table.
// Unmatched nodes are ignored. Nodes sharing a key keep scene traversal
// order, which is how they correlate with array-valued payload readings.
func BuildComponentIndex(s *scene.Scene) *ComponentIndex {
	ix := &ComponentIndex{
		nodes:   make(map[string][]*scene.Node),
		classes: make(map[string]ComponentClass),
	}
	s.Walk(func(n *scene.Node) {
		key, class, ok := classify(n.Name)
		if !ok {
			return
		}
		ix.nodes[key] = append(ix.nodes[key], n)
		ix.classes[key] = class
	})
	return ix
}

func classify(name string) (string, ComponentClass, bool) {
	lower := strings.ToLower(name)
	for _, rule := range defaultRules {
		if !matchesAll(lower, rule.patterns) {
			continue
		}
		key := rule.key
		if key == "" {
			key = canonicalKey(name)
		}
		return key, rule.class, true
	}
	return "", 0, false
}

func matchesAll(lower string, patterns []string) bool {
	for _, p := range patterns {
		if !strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

// canonicalKey normalizes a node name into a stable semantic key for
// components identified by their own name, such as pipes and scrapers.
func canonicalKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Nodes returns the ordered nodes for a key; nil when the key is absent.
func (ix *ComponentIndex) Nodes(key string) []*scene.Node {
	return ix.nodes[key]
}

// First returns the first node for a key, or nil when the key is absent.
// Callers are expected to treat a nil result as "feature degrades to
// no-op", never as a fatal condition.
func (ix *ComponentIndex) First(key string) *scene.Node {
	if ns := ix.nodes[key]; len(ns) > 0 {
		return ns[0]
	}
	return nil
}

// Class returns the component class recorded for a key.
func (ix *ComponentIndex) Class(key string) (ComponentClass, bool) {
	c, ok := ix.classes[key]
	return c, ok
}

// KeysOfClass returns the sorted keys of a given class. Sorting keeps
// iteration deterministic for the engines and their tests.
func (ix *ComponentIndex) KeysOfClass(class ComponentClass) []string {
	var keys []string
	for k, c := range ix.classes {
		if c == class {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of distinct component keys.
func (ix *ComponentIndex) Len() int { return len(ix.nodes) }
