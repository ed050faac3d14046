// Package labels holds the label taxonomy stored alongside annotations:
// object labels, action labels and skeleton types.
package labels

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type ObjectLabel struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`

	Extra map[string]json.RawMessage `json:"-"`
}

type ActionLabel struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Objects []int  `json:"objects"`

	Extra map[string]json.RawMessage `json:"-"`
}

type SkeletonPoint struct {
	ID   int     `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type SkeletonEdge struct {
	ID   int `json:"id"`
	From int `json:"from"`
	To   int `json:"to"`
}

type SkeletonType struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Color       string          `json:"color"`
	PointList   []SkeletonPoint `json:"pointList"`
	EdgeList    []SkeletonEdge  `json:"edgeList"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Config is the configuration section of a session document.
type Config struct {
	ObjectLabels  []ObjectLabel  `json:"objectLabelData"`
	ActionLabels  []ActionLabel  `json:"actionLabelData"`
	SkeletonTypes []SkeletonType `json:"skeletonTypeData"`
}

// Default is used when no labels file is configured.
func Default() Config {
	return Config{
		ObjectLabels: []ObjectLabel{
			{ID: 0, Name: "default", Color: "#00FF00"},
		},
		ActionLabels: []ActionLabel{
			{ID: 0, Name: "default", Color: "#FF0000", Objects: []int{0}},
		},
		SkeletonTypes: []SkeletonType{
			{
				ID:          0,
				Name:        "human",
				Description: "A simple human skeleton",
				Color:       "#0000FF",
				PointList: []SkeletonPoint{
					{ID: -1, Name: "center", X: 0, Y: 0},
					{ID: 0, Name: "head", X: 0, Y: -20},
					{ID: 1, Name: "left hand", X: -15, Y: 0},
					{ID: 2, Name: "right hand", X: 15, Y: 0},
					{ID: 3, Name: "left foot", X: -10, Y: 30},
					{ID: 4, Name: "right foot", X: 10, Y: 30},
				},
				EdgeList: []SkeletonEdge{
					{ID: 0, From: -1, To: 0},
					{ID: 1, From: -1, To: 1},
					{ID: 2, From: -1, To: 2},
					{ID: 3, From: -1, To: 3},
					{ID: 4, From: -1, To: 4},
				},
			},
		},
	}
}

// Load reads a labels file. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read labels file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse labels file %s: %w", path, err)
	}
	return cfg.Normalize(), nil
}

// Normalize replaces missing sections with empty lists so they encode as
// [] rather than null.
func (c Config) Normalize() Config {
	if c.ObjectLabels == nil {
		c.ObjectLabels = []ObjectLabel{}
	}
	if c.ActionLabels == nil {
		c.ActionLabels = []ActionLabel{}
	}
	if c.SkeletonTypes == nil {
		c.SkeletonTypes = []SkeletonType{}
	}
	return c
}

// Decode reads a configuration section. Missing sections become empty.
func Decode(data []byte) (Config, error) {
	var cfg Config
	if len(data) == 0 || string(data) == "null" {
		return cfg.Normalize(), nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg.Normalize(), nil
}

func (c Config) ObjectLabel(id int) (ObjectLabel, bool) {
	for _, l := range c.ObjectLabels {
		if l.ID == id {
			return l, true
		}
	}
	return ObjectLabel{}, false
}

func (c Config) ActionLabel(id int) (ActionLabel, bool) {
	for _, l := range c.ActionLabels {
		if l.ID == id {
			return l, true
		}
	}
	return ActionLabel{}, false
}

func (c Config) SkeletonType(id int) (SkeletonType, bool) {
	for _, t := range c.SkeletonTypes {
		if t.ID == id {
			return t, true
		}
	}
	return SkeletonType{}, false
}

// nameKey folds a label name so visually identical names compare equal.
// A Caser is stateful, so each call gets its own.
func nameKey(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

// Validate reports inconsistencies that do not prevent loading: repeated
// ids or names and references to unknown labels or points.
func (c Config) Validate() []string {
	var warnings []string
	dup := func(section string, ids []int, names []string) {
		seenID := map[int]bool{}
		seenName := map[string]string{}
		for i, id := range ids {
			if seenID[id] {
				warnings = append(warnings, fmt.Sprintf("%s: duplicate id %d", section, id))
			}
			seenID[id] = true
			key := nameKey(names[i])
			if prev, ok := seenName[key]; ok {
				warnings = append(warnings, fmt.Sprintf("%s: name %q duplicates %q", section, names[i], prev))
				continue
			}
			seenName[key] = names[i]
		}
	}

	ids, names := make([]int, 0, len(c.ObjectLabels)), make([]string, 0, len(c.ObjectLabels))
	for _, l := range c.ObjectLabels {
		ids, names = append(ids, l.ID), append(names, l.Name)
	}
	dup("objectLabelData", ids, names)

	ids, names = ids[:0], names[:0]
	for _, l := range c.ActionLabels {
		ids, names = append(ids, l.ID), append(names, l.Name)
		for _, obj := range l.Objects {
			if _, ok := c.ObjectLabel(obj); !ok {
				warnings = append(warnings, fmt.Sprintf("actionLabelData: %q refers to unknown object label %d", l.Name, obj))
			}
		}
	}
	dup("actionLabelData", ids, names)

	ids, names = ids[:0], names[:0]
	for _, t := range c.SkeletonTypes {
		ids, names = append(ids, t.ID), append(names, t.Name)
		points := map[int]bool{}
		for _, p := range t.PointList {
			points[p.ID] = true
		}
		for _, e := range t.EdgeList {
			if !points[e.From] || !points[e.To] {
				warnings = append(warnings, fmt.Sprintf("skeletonTypeData: %q edge %d joins unknown points %d-%d", t.Name, e.ID, e.From, e.To))
			}
		}
	}
	dup("skeletonTypeData", ids, names)

	return warnings
}
