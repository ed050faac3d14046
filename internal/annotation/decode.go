package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrInvalidField = errors.New("invalid field")
)

// record reads typed fields out of one untyped document record.
type record struct {
	kind Kind
	m    map[string]any
}

func (r record) missing(field string) error {
	return fmt.Errorf("%s: %w %q", r.kind, ErrMissingField, field)
}

func (r record) invalid(field string, v any, want string) error {
	return fmt.Errorf("%s: %w %q: %v is not %s", r.kind, ErrInvalidField, field, v, want)
}

func (r record) number(field string) (float64, error) {
	v, ok := r.m[field]
	if !ok || v == nil {
		return 0, r.missing(field)
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, r.invalid(field, v, "a number")
	}
	return f, nil
}

func (r record) integer(field string) (int, error) {
	f, err := r.number(field)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, r.invalid(field, f, "an integer")
	}
	return int(f), nil
}

func (r record) text(field string) (string, error) {
	v, ok := r.m[field]
	if !ok || v == nil {
		return "", r.missing(field)
	}
	s, ok := v.(string)
	if !ok {
		return "", r.invalid(field, v, "a string")
	}
	return s, nil
}

func (r record) optionalString(field string) (string, error) {
	if v, ok := r.m[field]; !ok || v == nil {
		return "", nil
	}
	return r.text(field)
}

// optionalInt treats an absent or null field as unset.
func (r record) optionalInt(field string) (*int, error) {
	if v, ok := r.m[field]; !ok || v == nil {
		return nil, nil
	}
	i, err := r.integer(field)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r record) optionalFloat(field string) (*float64, error) {
	if v, ok := r.m[field]; !ok || v == nil {
		return nil, nil
	}
	f, err := r.number(field)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r record) list(field string, required bool) ([]map[string]any, error) {
	v, ok := r.m[field]
	if !ok || v == nil {
		if required {
			return nil, r.missing(field)
		}
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, r.invalid(field, v, "a list")
	}
	ret := make([]map[string]any, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: %w %q[%d]: not an object", r.kind, ErrInvalidField, field, i)
		}
		ret = append(ret, m)
	}
	return ret, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func DecodeObject(m map[string]any) (Object, error) {
	r := record{kind: KindObject, m: m}
	x, err := r.number("x")
	if err != nil {
		return Object{}, err
	}
	y, err := r.number("y")
	if err != nil {
		return Object{}, err
	}
	width, err := r.number("width")
	if err != nil {
		return Object{}, err
	}
	height, err := r.number("height")
	if err != nil {
		return Object{}, err
	}
	labelID, err := r.integer("labelId")
	if err != nil {
		return Object{}, err
	}
	color, err := r.text("color")
	if err != nil {
		return Object{}, err
	}
	instance, err := r.optionalInt("instance")
	if err != nil {
		return Object{}, err
	}
	score, err := r.optionalFloat("score")
	if err != nil {
		return Object{}, err
	}
	return NewObject(x, y, width, height, labelID, color, instance, score), nil
}

func DecodeRegion(m map[string]any) (Region, error) {
	r := record{kind: KindRegion, m: m}
	raw, err := r.list("pointList", true)
	if err != nil {
		return Region{}, err
	}
	points := make([]Point, 0, len(raw))
	for i, pm := range raw {
		pr := record{kind: KindRegion, m: pm}
		x, err := pr.number("x")
		if err != nil {
			return Region{}, fmt.Errorf("pointList[%d]: %w", i, err)
		}
		y, err := pr.number("y")
		if err != nil {
			return Region{}, fmt.Errorf("pointList[%d]: %w", i, err)
		}
		points = append(points, Point{X: x, Y: y})
	}
	labelID, err := r.integer("labelId")
	if err != nil {
		return Region{}, err
	}
	color, err := r.text("color")
	if err != nil {
		return Region{}, err
	}
	instance, err := r.optionalInt("instance")
	if err != nil {
		return Region{}, err
	}
	score, err := r.optionalFloat("score")
	if err != nil {
		return Region{}, err
	}
	return NewRegion(points, labelID, color, instance, score), nil
}

func DecodeSkeleton(m map[string]any) (Skeleton, error) {
	r := record{kind: KindSkeleton, m: m}
	centerX, err := r.number("centerX")
	if err != nil {
		return Skeleton{}, err
	}
	centerY, err := r.number("centerY")
	if err != nil {
		return Skeleton{}, err
	}
	typeID, err := r.integer("typeId")
	if err != nil {
		return Skeleton{}, err
	}
	color, err := r.text("color")
	if err != nil {
		return Skeleton{}, err
	}
	instance, err := r.optionalInt("instance")
	if err != nil {
		return Skeleton{}, err
	}
	score, err := r.optionalFloat("score")
	if err != nil {
		return Skeleton{}, err
	}

	var opts []SkeletonOption
	ratio, err := r.optionalFloat("_ratio")
	if err != nil {
		return Skeleton{}, err
	}
	if ratio != nil {
		opts = append(opts, WithRatio(*ratio))
	}

	raw, err := r.list("pointList", false)
	if err != nil {
		return Skeleton{}, err
	}
	if raw != nil {
		points := make([]SkeletonPoint, 0, len(raw))
		for i, pm := range raw {
			p, err := decodeSkeletonPoint(pm)
			if err != nil {
				return Skeleton{}, fmt.Errorf("pointList[%d]: %w", i, err)
			}
			points = append(points, p)
		}
		opts = append(opts, WithPoints(points))
	}
	return NewSkeleton(centerX, centerY, typeID, color, instance, score, opts...), nil
}

func decodeSkeletonPoint(m map[string]any) (SkeletonPoint, error) {
	r := record{kind: KindSkeleton, m: m}
	id, err := r.integer("id")
	if err != nil {
		return SkeletonPoint{}, err
	}
	name, err := r.optionalString("name")
	if err != nil {
		return SkeletonPoint{}, err
	}
	x, err := r.number("x")
	if err != nil {
		return SkeletonPoint{}, err
	}
	y, err := r.number("y")
	if err != nil {
		return SkeletonPoint{}, err
	}
	return SkeletonPoint{ID: id, Name: name, X: x, Y: y}, nil
}

func DecodeAction(m map[string]any) (Action, error) {
	r := record{kind: KindAction, m: m}
	start, err := r.integer("start")
	if err != nil {
		return Action{}, err
	}
	end, err := r.integer("end")
	if err != nil {
		return Action{}, err
	}
	action, err := r.integer("action")
	if err != nil {
		return Action{}, err
	}
	object, err := r.integer("object")
	if err != nil {
		return Action{}, err
	}
	color, err := r.text("color")
	if err != nil {
		return Action{}, err
	}
	description, err := r.optionalString("description")
	if err != nil {
		return Action{}, err
	}
	return NewAction(start, end, action, object, color, description), nil
}

// DecodeFrameMap rebuilds a frame-keyed collection. Keys must be
// non-negative decimal frame indices.
func DecodeFrameMap[T Annotation](raw map[string][]map[string]any, decode func(map[string]any) (T, error)) (map[int][]T, error) {
	ret := make(map[int][]T, len(raw))

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	// Deterministic order so the first failure reported is stable.
	sort.Strings(keys)

	for _, key := range keys {
		frame, err := strconv.Atoi(key)
		if err != nil || frame < 0 {
			return nil, fmt.Errorf("frame %q: %w: not a frame index", key, ErrInvalidField)
		}
		items := raw[key]
		list := make([]T, 0, len(items))
		for i, m := range items {
			v, err := decode(m)
			if err != nil {
				return nil, fmt.Errorf("frame %s[%d]: %w", key, i, err)
			}
			list = append(list, v)
		}
		ret[frame] = list
	}
	return ret, nil
}

func DecodeActions(raw []map[string]any) ([]Action, error) {
	ret := make([]Action, 0, len(raw))
	for i, m := range raw {
		a, err := DecodeAction(m)
		if err != nil {
			return nil, fmt.Errorf("action[%d]: %w", i, err)
		}
		ret = append(ret, a)
	}
	return ret, nil
}

// Decode rebuilds one record of the given kind.
func Decode(kind Kind, m map[string]any) (Annotation, error) {
	var (
		a   Annotation
		err error
	)
	switch kind {
	case KindObject:
		a, err = DecodeObject(m)
	case KindRegion:
		a, err = DecodeRegion(m)
	case KindSkeleton:
		a, err = DecodeSkeleton(m)
	case KindAction:
		a, err = DecodeAction(m)
	default:
		return nil, fmt.Errorf("%w: unknown annotation kind %q", ErrInvalidField, kind)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
