// Package annotation defines the four annotation variants recorded against a
// video and the collections that group them by frame.
package annotation

type Kind string

const (
	KindObject   Kind = "object"
	KindRegion   Kind = "region"
	KindSkeleton Kind = "skeleton"
	KindAction   Kind = "action"
)

// ParseKind maps a kind name to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindObject, KindRegion, KindSkeleton, KindAction:
		return Kind(s), true
	}
	return "", false
}

// Annotation is implemented only by Object, Region, Skeleton and Action.
type Annotation interface {
	Kind() Kind
	isAnnotation()
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Object is an axis-aligned bounding box on one frame.
type Object struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	LabelID  int      `json:"labelId"`
	Color    string   `json:"color"`
	Instance *int     `json:"instance"`
	Score    *float64 `json:"score"`
}

func NewObject(x, y, width, height float64, labelID int, color string, instance *int, score *float64) Object {
	return Object{
		X:        x,
		Y:        y,
		Width:    width,
		Height:   height,
		LabelID:  labelID,
		Color:    color,
		Instance: instance,
		Score:    score,
	}
}

func (Object) Kind() Kind    { return KindObject }
func (Object) isAnnotation() {}

// Region is a polygon on one frame.
type Region struct {
	PointList []Point  `json:"pointList"`
	LabelID   int      `json:"labelId"`
	Color     string   `json:"color"`
	Instance  *int     `json:"instance"`
	Score     *float64 `json:"score"`
}

func NewRegion(points []Point, labelID int, color string, instance *int, score *float64) Region {
	if points == nil {
		points = []Point{}
	}
	return Region{
		PointList: points,
		LabelID:   labelID,
		Color:     color,
		Instance:  instance,
		Score:     score,
	}
}

func (Region) Kind() Kind    { return KindRegion }
func (Region) isAnnotation() {}

type SkeletonPoint struct {
	ID   int     `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Skeleton is a set of joints placed around a centre point. Ratio scales
// the joints relative to the skeleton type's template.
type Skeleton struct {
	Instance  *int            `json:"instance"`
	Score     *float64        `json:"score"`
	CenterX   float64         `json:"centerX"`
	CenterY   float64         `json:"centerY"`
	TypeID    int             `json:"typeId"`
	Color     string          `json:"color"`
	Ratio     float64         `json:"_ratio"`
	PointList []SkeletonPoint `json:"pointList"`
}

type SkeletonOption func(*Skeleton)

func WithRatio(ratio float64) SkeletonOption {
	return func(s *Skeleton) {
		s.Ratio = ratio
	}
}

func WithPoints(points []SkeletonPoint) SkeletonOption {
	return func(s *Skeleton) {
		s.PointList = append([]SkeletonPoint{}, points...)
	}
}

// NewSkeleton returns a complete skeleton. Without options the ratio is 1
// and there are no joints.
func NewSkeleton(centerX, centerY float64, typeID int, color string, instance *int, score *float64, opts ...SkeletonOption) Skeleton {
	s := Skeleton{
		Instance:  instance,
		Score:     score,
		CenterX:   centerX,
		CenterY:   centerY,
		TypeID:    typeID,
		Color:     color,
		Ratio:     1,
		PointList: []SkeletonPoint{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (Skeleton) Kind() Kind    { return KindSkeleton }
func (Skeleton) isAnnotation() {}

// Action is a labelled interval [Start, End] of frames performed by the
// object instance Object.
type Action struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Action      int    `json:"action"`
	Object      int    `json:"object"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

func NewAction(start, end, action, object int, color, description string) Action {
	return Action{
		Start:       start,
		End:         end,
		Action:      action,
		Object:      object,
		Color:       color,
		Description: description,
	}
}

func (Action) Kind() Kind    { return KindAction }
func (Action) isAnnotation() {}

// Covers reports whether frame lies inside the action's inclusive interval.
func (a Action) Covers(frame int) bool {
	return frame >= a.Start && frame <= a.End
}

// Int and Float build the optional instance and score values.
func Int(v int) *int { return &v }

func Float(v float64) *float64 { return &v }
