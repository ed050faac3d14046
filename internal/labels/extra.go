package labels

import (
	"encoding/json"
)

// Label entries keep fields this package does not model so a loaded
// configuration is written back unchanged.

func (l *ObjectLabel) UnmarshalJSON(data []byte) error {
	type plain ObjectLabel
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, "id", "name", "color")
	if err != nil {
		return err
	}
	*l = ObjectLabel(p)
	l.Extra = extra
	return nil
}

func (l ObjectLabel) MarshalJSON() ([]byte, error) {
	type plain ObjectLabel
	return withExtra(plain(l), l.Extra)
}

func (l *ActionLabel) UnmarshalJSON(data []byte) error {
	type plain ActionLabel
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, "id", "name", "color", "objects")
	if err != nil {
		return err
	}
	*l = ActionLabel(p)
	l.Extra = extra
	return nil
}

func (l ActionLabel) MarshalJSON() ([]byte, error) {
	type plain ActionLabel
	if l.Objects == nil {
		l.Objects = []int{}
	}
	return withExtra(plain(l), l.Extra)
}

func (t *SkeletonType) UnmarshalJSON(data []byte) error {
	type plain SkeletonType
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, "id", "name", "description", "color", "pointList", "edgeList")
	if err != nil {
		return err
	}
	*t = SkeletonType(p)
	t.Extra = extra
	return nil
}

func (t SkeletonType) MarshalJSON() ([]byte, error) {
	type plain SkeletonType
	if t.PointList == nil {
		t.PointList = []SkeletonPoint{}
	}
	if t.EdgeList == nil {
		t.EdgeList = []SkeletonEdge{}
	}
	return withExtra(plain(t), t.Extra)
}

func unknownFields(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func withExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = raw
		}
	}
	return json.Marshal(merged)
}
