package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MimeLyc/video-annotator/internal/annotation"
	"github.com/MimeLyc/video-annotator/internal/config"
	"github.com/MimeLyc/video-annotator/internal/persistence"
	"github.com/MimeLyc/video-annotator/internal/session"
	"github.com/MimeLyc/video-annotator/pkg/log"
)

const maxDocumentBytes = 64 << 20

func (s *Server) currentSession(w http.ResponseWriter) *session.Session {
	cur := s.manager.Current()
	if cur == nil {
		writeError(w, http.StatusConflict, "no video is open")
	}
	return cur
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cur := s.manager.Current()
	if cur == nil {
		writeError(w, http.StatusNotFound, "no video is open")
		return
	}
	writeJSON(w, http.StatusOK, cur.Info())
}

type openRequest struct {
	Src string  `json:"src"`
	FPS float64 `json:"fps"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Src) == "" {
		writeError(w, http.StatusBadRequest, "src is required")
		return
	}
	cur, err := s.manager.Open(req.Src, req.FPS)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cur.Info())
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.manager.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
	})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "frame index must be an integer")
		return
	}
	cur := s.currentSession(w)
	if cur == nil {
		return
	}
	raster, ok, err := cur.Frame(index)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"index":       index,
			"prioritized": true,
		})
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raster)
}

type dumpRequest struct {
	Dir string `json:"dir"`
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req dumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	dir := req.Dir
	if dir == "" {
		dir = s.dumpDir
	}
	if dir == "" {
		writeError(w, http.StatusBadRequest, "dir is required")
		return
	}
	cur := s.currentSession(w)
	if cur == nil {
		return
	}
	n, err := cur.DumpFrames(r.Context(), dir, s.dumpWorkers)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dir":    dir,
		"frames": n,
	})
}

type addAnnotationRequest struct {
	Kind   string         `json:"kind"`
	Frame  int            `json:"frame"`
	Record map[string]any `json:"record"`
}

type annotationView struct {
	Kind   annotation.Kind       `json:"kind"`
	Record annotation.Annotation `json:"record"`
}

func (s *Server) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	cur := s.currentSession(w)
	if cur == nil {
		return
	}

	switch r.Method {
	case http.MethodGet:
		frame, err := strconv.Atoi(r.URL.Query().Get("frame"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "frame query parameter is required")
			return
		}
		items := cur.Annotations().AtFrame(frame)
		ret := make([]annotationView, 0, len(items))
		for _, a := range items {
			ret = append(ret, annotationView{Kind: a.Kind(), Record: a})
		}
		writeJSON(w, http.StatusOK, ret)
	case http.MethodPost:
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		var req addAnnotationRequest
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		kind, ok := annotation.ParseKind(req.Kind)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown annotation kind %q", req.Kind))
			return
		}
		a, err := annotation.Decode(kind, req.Record)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := cur.Add(req.Frame, a); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"annotations": cur.Annotations().Len(),
			"isSaved":     cur.IsSaved(),
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cur := s.currentSession(w)
	if cur == nil {
		return
	}
	writeJSON(w, http.StatusOK, cur.Labels())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cur := s.currentSession(w)
	if cur == nil {
		return
	}
	data, _, err := cur.Export()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	name := session.DocumentFileName(r.URL.Query().Get("name"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}
	s.loadDocument(w, data)
}

func (s *Server) loadDocument(w http.ResponseWriter, data []byte) {
	if err := s.manager.Load(data); err != nil {
		writeSessionError(w, err)
		return
	}
	cur := s.manager.Current()
	if cur == nil {
		writeError(w, http.StatusConflict, "video was closed while loading")
		return
	}
	writeJSON(w, http.StatusOK, cur.Info())
}

type saveRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.saver == nil {
		writeError(w, http.StatusNotImplemented, "no save target is configured")
		return
	}
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	res, err := s.saver.Save(r.Context(), req.Name)
	if err != nil {
		if session.IsErrorKind(err, session.ErrNoVideo) {
			writeSessionError(w, err)
			return
		}
		log.Error("Save %s failed: %v", req.Name, err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"result": res,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.documents == nil {
		writeError(w, http.StatusNotImplemented, "document store is not configured")
		return
	}
	docs, err := s.documents.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if s.documents == nil {
		writeError(w, http.StatusNotImplemented, "document store is not configured")
		return
	}
	name := r.PathValue("name")

	switch r.Method {
	case http.MethodGet:
		doc, err := s.documents.LoadDocument(r.Context(), name)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc.Data)
	case http.MethodDelete:
		if err := s.documents.DeleteDocument(r.Context(), name); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok": true,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleLoadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.documents == nil {
		writeError(w, http.StatusNotImplemented, "document store is not configured")
		return
	}
	name := r.PathValue("name")

	var data []byte
	doc, err := s.documents.LoadDocument(r.Context(), name)
	switch {
	case err == nil:
		data = doc.Data
	case errors.Is(err, persistence.ErrNotFound) && s.remote != nil:
		data, err = s.remote.GetDocument(r.Context(), name)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
	default:
		writeStoreError(w, err)
		return
	}
	s.loadDocument(w, bytes.TrimSpace(data))
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.feed == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, s.feed.Recent())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	var sErr *session.Error
	if !errors.As(err, &sErr) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	switch sErr.Kind {
	case session.ErrNoVideo:
		writeError(w, http.StatusConflict, err.Error())
	case session.ErrParse, session.ErrDecode, session.ErrInvalid:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, persistence.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
