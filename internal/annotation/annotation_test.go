package annotation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestNewSkeletonDefaults(t *testing.T) {
	s := NewSkeleton(10, 20, 1, "#00ff00", nil, nil)
	assert.Equal(t, 1.0, s.Ratio)
	assert.NotNil(t, s.PointList)
	assert.Empty(t, s.PointList)
	assert.Equal(t, KindSkeleton, s.Kind())
}

func TestNewSkeletonWithOptions(t *testing.T) {
	points := []SkeletonPoint{{ID: 0, Name: "head", X: 1, Y: 2}}
	s := NewSkeleton(10, 20, 1, "#00ff00", Int(3), Float(0.5), WithRatio(1.5), WithPoints(points))
	assert.Equal(t, 1.5, s.Ratio)
	assert.Equal(t, points, s.PointList)

	points[0].X = 99
	assert.Equal(t, 1.0, s.PointList[0].X, "points are copied")
}

func TestDecodeObject(t *testing.T) {
	o, err := DecodeObject(decodeJSON(t, `{"x":1,"y":2.5,"width":30,"height":40,"labelId":2,"color":"#f00","instance":7,"score":0.9,"extra":true}`))
	require.NoError(t, err)
	assert.Equal(t, NewObject(1, 2.5, 30, 40, 2, "#f00", Int(7), Float(0.9)), o)
}

func TestDecodeObjectNullableFields(t *testing.T) {
	o, err := DecodeObject(decodeJSON(t, `{"x":1,"y":2,"width":3,"height":4,"labelId":0,"color":"red","instance":null}`))
	require.NoError(t, err)
	assert.Nil(t, o.Instance)
	assert.Nil(t, o.Score)
}

func TestDecodeObjectMissingField(t *testing.T) {
	_, err := DecodeObject(decodeJSON(t, `{"x":1,"y":2,"width":3,"labelId":0,"color":"red"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), `"height"`)
}

func TestDecodeObjectWrongType(t *testing.T) {
	_, err := DecodeObject(decodeJSON(t, `{"x":"1","y":2,"width":3,"height":4,"labelId":0,"color":"red"}`))
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = DecodeObject(decodeJSON(t, `{"x":1,"y":2,"width":3,"height":4,"labelId":0.5,"color":"red"}`))
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestDecodeRegion(t *testing.T) {
	r, err := DecodeRegion(decodeJSON(t, `{"pointList":[{"x":0,"y":0},{"x":5,"y":0},{"x":5,"y":5}],"labelId":1,"color":"blue","instance":2}`))
	require.NoError(t, err)
	assert.Len(t, r.PointList, 3)
	assert.Equal(t, Point{X: 5, Y: 5}, r.PointList[2])
	assert.Equal(t, 2, *r.Instance)

	_, err = DecodeRegion(decodeJSON(t, `{"pointList":[{"x":0}],"labelId":1,"color":"blue"}`))
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "pointList[0]")
}

func TestDecodeSkeleton(t *testing.T) {
	s, err := DecodeSkeleton(decodeJSON(t, `{"centerX":50,"centerY":60,"typeId":0,"color":"#abc","instance":null,"score":null,"_ratio":2,
		"pointList":[{"id":0,"name":"centre","x":50,"y":60},{"id":1,"name":"head","x":50,"y":40}]}`))
	require.NoError(t, err)
	assert.Equal(t, 2.0, s.Ratio)
	assert.Len(t, s.PointList, 2)
	assert.Equal(t, "head", s.PointList[1].Name)
}

func TestDecodeSkeletonWithoutGeometry(t *testing.T) {
	s, err := DecodeSkeleton(decodeJSON(t, `{"centerX":50,"centerY":60,"typeId":0,"color":"#abc"}`))
	require.NoError(t, err)
	assert.Equal(t, NewSkeleton(50, 60, 0, "#abc", nil, nil), s)
}

func TestDecodeAction(t *testing.T) {
	a, err := DecodeAction(decodeJSON(t, `{"start":10,"end":20,"action":1,"object":3,"color":"#fff","description":"walks"}`))
	require.NoError(t, err)
	assert.Equal(t, NewAction(10, 20, 1, 3, "#fff", "walks"), a)

	_, err = DecodeAction(decodeJSON(t, `{"start":10,"action":1,"object":3,"color":"#fff"}`))
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestDecodeFrameMap(t *testing.T) {
	raw := map[string][]map[string]any{
		"0":  {decodeJSON(t, `{"x":1,"y":2,"width":3,"height":4,"labelId":0,"color":"red"}`)},
		"12": {},
	}
	got, err := DecodeFrameMap(raw, DecodeObject)
	require.NoError(t, err)
	assert.Len(t, got[0], 1)
	assert.Empty(t, got[12])

	_, err = DecodeFrameMap(map[string][]map[string]any{"abc": nil}, DecodeObject)
	assert.ErrorIs(t, err, ErrInvalidField)

	raw["5"] = []map[string]any{{"x": 1}}
	_, err = DecodeFrameMap(raw, DecodeObject)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame 5[0]")
}

func TestDecodeByKind(t *testing.T) {
	a, err := Decode(KindAction, decodeJSON(t, `{"start":0,"end":1,"action":0,"object":0,"color":"c"}`))
	require.NoError(t, err)
	assert.Equal(t, KindAction, a.Kind())

	a, err = Decode(KindRegion, map[string]any{})
	assert.Error(t, err)
	assert.Nil(t, a)

	_, err = Decode(Kind("polygon"), map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestSetAddAndAtFrame(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Add(3, NewObject(0, 0, 1, 1, 0, "red", Int(1), nil)))
	require.NoError(t, s.Add(3, NewRegion([]Point{{X: 1, Y: 1}}, 0, "red", nil, nil)))
	require.NoError(t, s.Add(4, NewSkeleton(0, 0, 0, "red", nil, nil)))
	require.NoError(t, s.Add(0, NewAction(2, 5, 0, 1, "red", "")))
	assert.Error(t, s.Add(0, NewAction(5, 2, 0, 1, "red", "")))
	assert.Error(t, s.Add(-1, NewObject(0, 0, 1, 1, 0, "red", nil, nil)))

	assert.Equal(t, 4, s.Len())
	kinds := []Kind{}
	for _, a := range s.AtFrame(3) {
		kinds = append(kinds, a.Kind())
	}
	assert.Equal(t, []Kind{KindObject, KindRegion, KindAction}, kinds)
	assert.Len(t, s.AtFrame(6), 0)
	assert.Equal(t, []int{3, 4}, s.Frames())
}

func TestSetCloneIsDeep(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Add(1, NewObject(0, 0, 1, 1, 0, "red", Int(1), Float(0.5))))
	require.NoError(t, s.Add(1, NewRegion([]Point{{X: 1, Y: 1}}, 0, "red", nil, nil)))

	c := s.Clone()
	*c.Objects[1][0].Instance = 9
	c.Regions[1][0].PointList[0].X = 9

	assert.Equal(t, 1, *s.Objects[1][0].Instance)
	assert.Equal(t, 1.0, s.Regions[1][0].PointList[0].X)
}

func TestDanglingActions(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Add(10, NewObject(0, 0, 1, 1, 0, "red", Int(1), nil)))
	require.NoError(t, s.Add(0, NewAction(5, 15, 0, 1, "red", "ok")))
	require.NoError(t, s.Add(0, NewAction(20, 30, 0, 1, "red", "out of range")))
	require.NoError(t, s.Add(0, NewAction(5, 15, 0, 2, "red", "no such instance")))

	dangling := s.DanglingActions()
	require.Len(t, dangling, 2)
	assert.Equal(t, "out of range", dangling[0].Description)
	assert.Equal(t, "no such instance", dangling[1].Description)
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("skeleton")
	assert.True(t, ok)
	assert.Equal(t, KindSkeleton, k)

	_, ok = ParseKind("box")
	assert.False(t, ok)
}
