package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/MimeLyc/video-annotator/internal/annotation"
	"github.com/MimeLyc/video-annotator/internal/extraction"
	"github.com/MimeLyc/video-annotator/internal/labels"
	"github.com/MimeLyc/video-annotator/pkg/file"
)

// DefaultDocumentName is used when a save does not name the document.
const DefaultDocumentName = "annotations"

// Snapshot is everything a session document stores.
type Snapshot struct {
	Video       extraction.Video
	Keyframes   []int
	Annotations *annotation.Set
	Labels      labels.Config
}

type document struct {
	Version       string          `json:"version"`
	Annotation    annotationBlock `json:"annotation"`
	Configuration labels.Config   `json:"configuration"`
}

type annotationBlock struct {
	Video                     extraction.Video              `json:"video"`
	KeyframeList              []int                         `json:"keyframeList"`
	ObjectAnnotationListMap   map[int][]annotation.Object   `json:"objectAnnotationListMap"`
	RegionAnnotationListMap   map[int][]annotation.Region   `json:"regionAnnotationListMap"`
	SkeletonAnnotationListMap map[int][]annotation.Skeleton `json:"skeletonAnnotationListMap"`
	ActionAnnotationList      []annotation.Action           `json:"actionAnnotationList"`
}

// Export serialises a snapshot into a session document.
func Export(snap Snapshot, version string) ([]byte, error) {
	set := snap.Annotations
	if set == nil {
		set = annotation.NewSet()
	}
	doc := document{
		Version: version,
		Annotation: annotationBlock{
			Video:                     snap.Video,
			KeyframeList:              nonNil(snap.Keyframes),
			ObjectAnnotationListMap:   nonNilMap(set.Objects),
			RegionAnnotationListMap:   nonNilMap(set.Regions),
			SkeletonAnnotationListMap: nonNilMap(set.Skeletons),
			ActionAnnotationList:      nonNil(set.Actions),
		},
		Configuration: snap.Labels.Normalize(),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, WrapError(err, ErrUnknown, "encode session document")
	}
	return data, nil
}

// Imported is a fully reconstructed document. Nothing has been applied yet.
type Imported struct {
	Version string
	// Warning is set when the document was written by another format version.
	Warning       string
	Video         extraction.Video
	Keyframes     []int
	Annotations   *annotation.Set
	Labels        labels.Config
	LabelWarnings []string
}

type rawDocument struct {
	Version       *string         `json:"version"`
	Annotation    *rawAnnotation  `json:"annotation"`
	Configuration json.RawMessage `json:"configuration"`
}

type rawAnnotation struct {
	Video                     *extraction.Video           `json:"video"`
	KeyframeList              []int                       `json:"keyframeList"`
	ObjectAnnotationListMap   map[string][]map[string]any `json:"objectAnnotationListMap"`
	RegionAnnotationListMap   map[string][]map[string]any `json:"regionAnnotationListMap"`
	SkeletonAnnotationListMap map[string][]map[string]any `json:"skeletonAnnotationListMap"`
	ActionAnnotationList      []map[string]any            `json:"actionAnnotationList"`
}

// Import parses and reconstructs a session document. Any failure aborts the
// whole import; a version mismatch only produces a warning.
func Import(data []byte, currentVersion string) (*Imported, error) {
	var raw rawDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, WrapError(err, ErrParse, "malformed session document")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, NewError(ErrParse, "malformed session document: trailing data after document")
	}

	imp := &Imported{}
	if raw.Version != nil {
		imp.Version = *raw.Version
	}
	if imp.Version != currentVersion {
		imp.Warning = fmt.Sprintf("Version mismatched, weird things are likely to happen! %s!=%s", imp.Version, currentVersion)
	}

	if raw.Annotation == nil {
		return nil, NewError(ErrDecode, `missing required field "annotation"`)
	}
	a := raw.Annotation
	if a.Video == nil {
		return nil, NewError(ErrDecode, `missing required field "annotation.video"`)
	}
	if a.Video.FPS <= 0 {
		return nil, NewError(ErrDecode, "annotation.video.fps must be positive").
			WithContext("fps", a.Video.FPS)
	}
	if len(a.KeyframeList) == 0 {
		return nil, NewError(ErrDecode, `missing required field "annotation.keyframeList"`)
	}
	imp.Video = *a.Video
	imp.Keyframes = append([]int(nil), a.KeyframeList...)

	set := annotation.NewSet()
	var err error
	if set.Objects, err = annotation.DecodeFrameMap(a.ObjectAnnotationListMap, annotation.DecodeObject); err != nil {
		return nil, WrapError(err, ErrDecode, "objectAnnotationListMap")
	}
	if set.Regions, err = annotation.DecodeFrameMap(a.RegionAnnotationListMap, annotation.DecodeRegion); err != nil {
		return nil, WrapError(err, ErrDecode, "regionAnnotationListMap")
	}
	if set.Skeletons, err = annotation.DecodeFrameMap(a.SkeletonAnnotationListMap, annotation.DecodeSkeleton); err != nil {
		return nil, WrapError(err, ErrDecode, "skeletonAnnotationListMap")
	}
	if set.Actions, err = annotation.DecodeActions(a.ActionAnnotationList); err != nil {
		return nil, WrapError(err, ErrDecode, "actionAnnotationList")
	}
	imp.Annotations = set

	cfg, err := labels.Decode(raw.Configuration)
	if err != nil {
		return nil, WrapError(err, ErrDecode, "configuration")
	}
	imp.Labels = cfg
	imp.LabelWarnings = cfg.Validate()

	return imp, nil
}

// DocumentFileName turns a user supplied name into "<name>.json".
func DocumentFileName(name string) string {
	name = file.SafeName(name)
	if name == "" {
		name = DefaultDocumentName
	}
	return file.EnsureExt(name, ".json")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap[T any](m map[int][]T) map[int][]T {
	if m == nil {
		return map[int][]T{}
	}
	return m
}
