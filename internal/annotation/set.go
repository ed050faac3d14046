package annotation

import (
	"fmt"
	"slices"
)

// Set holds every annotation of one video. Objects, regions and skeletons
// belong to a single frame; actions span frame intervals.
type Set struct {
	Objects   map[int][]Object
	Regions   map[int][]Region
	Skeletons map[int][]Skeleton
	Actions   []Action
}

func NewSet() *Set {
	return &Set{
		Objects:   map[int][]Object{},
		Regions:   map[int][]Region{},
		Skeletons: map[int][]Skeleton{},
		Actions:   []Action{},
	}
}

// Add appends a to the collection for its kind. frame is ignored for
// actions.
func (s *Set) Add(frame int, a Annotation) error {
	if frame < 0 {
		return fmt.Errorf("%w: negative frame %d", ErrInvalidField, frame)
	}
	switch v := a.(type) {
	case Object:
		s.Objects[frame] = append(s.Objects[frame], v)
	case Region:
		s.Regions[frame] = append(s.Regions[frame], v)
	case Skeleton:
		s.Skeletons[frame] = append(s.Skeletons[frame], v)
	case Action:
		if v.End < v.Start {
			return fmt.Errorf("%w: action ends (%d) before it starts (%d)", ErrInvalidField, v.End, v.Start)
		}
		s.Actions = append(s.Actions, v)
	default:
		return fmt.Errorf("%w: unsupported annotation %T", ErrInvalidField, a)
	}
	return nil
}

func (s *Set) Len() int {
	n := len(s.Actions)
	for _, l := range s.Objects {
		n += len(l)
	}
	for _, l := range s.Regions {
		n += len(l)
	}
	for _, l := range s.Skeletons {
		n += len(l)
	}
	return n
}

// AtFrame lists the frame's objects, regions and skeletons followed by the
// actions covering it.
func (s *Set) AtFrame(frame int) []Annotation {
	var ret []Annotation
	for _, v := range s.Objects[frame] {
		ret = append(ret, v)
	}
	for _, v := range s.Regions[frame] {
		ret = append(ret, v)
	}
	for _, v := range s.Skeletons[frame] {
		ret = append(ret, v)
	}
	for _, v := range s.Actions {
		if v.Covers(frame) {
			ret = append(ret, v)
		}
	}
	return ret
}

// Clone returns a deep copy.
func (s *Set) Clone() *Set {
	c := &Set{
		Objects:   make(map[int][]Object, len(s.Objects)),
		Regions:   make(map[int][]Region, len(s.Regions)),
		Skeletons: make(map[int][]Skeleton, len(s.Skeletons)),
		Actions:   make([]Action, len(s.Actions)),
	}
	for frame, l := range s.Objects {
		out := make([]Object, len(l))
		for i, v := range l {
			v.Instance = cloneInt(v.Instance)
			v.Score = cloneFloat(v.Score)
			out[i] = v
		}
		c.Objects[frame] = out
	}
	for frame, l := range s.Regions {
		out := make([]Region, len(l))
		for i, v := range l {
			v.PointList = slices.Clone(v.PointList)
			v.Instance = cloneInt(v.Instance)
			v.Score = cloneFloat(v.Score)
			out[i] = v
		}
		c.Regions[frame] = out
	}
	for frame, l := range s.Skeletons {
		out := make([]Skeleton, len(l))
		for i, v := range l {
			v.PointList = slices.Clone(v.PointList)
			v.Instance = cloneInt(v.Instance)
			v.Score = cloneFloat(v.Score)
			out[i] = v
		}
		c.Skeletons[frame] = out
	}
	copy(c.Actions, s.Actions)
	return c
}

// DanglingActions returns the actions whose object instance is not carried
// by any object annotation inside the action's interval.
func (s *Set) DanglingActions() []Action {
	var ret []Action
	for _, a := range s.Actions {
		if !s.instanceInRange(a.Object, a.Start, a.End) {
			ret = append(ret, a)
		}
	}
	return ret
}

func (s *Set) instanceInRange(instance, start, end int) bool {
	for frame, objects := range s.Objects {
		if frame < start || frame > end {
			continue
		}
		for _, o := range objects {
			if o.Instance != nil && *o.Instance == instance {
				return true
			}
		}
	}
	return false
}

// Frames returns every frame that carries a frame-bound annotation, in
// ascending order.
func (s *Set) Frames() []int {
	seen := map[int]struct{}{}
	for f, l := range s.Objects {
		if len(l) > 0 {
			seen[f] = struct{}{}
		}
	}
	for f, l := range s.Regions {
		if len(l) > 0 {
			seen[f] = struct{}{}
		}
	}
	for f, l := range s.Skeletons {
		if len(l) > 0 {
			seen[f] = struct{}{}
		}
	}
	ret := make([]int, 0, len(seen))
	for f := range seen {
		ret = append(ret, f)
	}
	slices.Sort(ret)
	return ret
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
