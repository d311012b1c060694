package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dgallion1/hl7gest/internal/ack"
	"github.com/dgallion1/hl7gest/internal/ast"
	"github.com/dgallion1/hl7gest/internal/delim"
	"github.com/dgallion1/hl7gest/internal/jsonify"
	"github.com/dgallion1/hl7gest/internal/lint"
	"github.com/dgallion1/hl7gest/internal/parser"
	"github.com/dgallion1/hl7gest/internal/query"
)

// readMessage reads the request body as message text. It writes the error
// response itself and returns false on failure.
func (s *Server) readMessage(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("message exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return "", false
		}
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return "", false
	}
	return string(data), true
}

// parseOptions builds parser options from the server config and the
// segment and auto_detect query overrides.
func (s *Server) parseOptions(r *http.Request, text string) ([]parser.Option, error) {
	seg := s.cfg.Segment()
	if v := r.URL.Query().Get("segment"); v != "" {
		seg = delim.ParseSegment(v)
	}
	if seg == "" {
		seg = delim.Sniff(text)
	}

	autoDetect := s.cfg.AutoDetect
	if v := r.URL.Query().Get("auto_detect"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid auto_detect %q", v)
		}
		autoDetect = b
	}
	return []parser.Option{parser.WithSegmentDelimiter(seg), parser.WithAutoDetect(autoDetect)}, nil
}

// parseRequest reads and parses the request body. It writes the error
// response itself and returns nil on failure.
func (s *Server) parseRequest(w http.ResponseWriter, r *http.Request) *ast.Root {
	text, ok := s.readMessage(w, r)
	if !ok {
		return nil
	}
	opts, err := s.parseOptions(r, text)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	start := time.Now()
	root, err := parser.Parse(text, opts...)
	elapsed := time.Since(start)
	s.metrics.RecordParse(len(text), elapsed, err)

	stats := s.orchestrator.ParseStats()
	if err != nil {
		if stats != nil {
			stats.RecordError()
		}
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return nil
	}
	if stats != nil {
		stats.Record(elapsed)
	}
	return root
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	root := s.parseRequest(w, r)
	if root == nil {
		return
	}
	writeJSON(w, http.StatusOK, root)
}

type queryMatch struct {
	Node  *ast.Node `json:"node"`
	Value string    `json:"value"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		jsonError(w, "path query parameter is required", http.StatusBadRequest)
		return
	}
	p, err := query.Parse(raw)
	if err != nil {
		s.metrics.RecordQuery("invalid")
		var pe *query.ParseError
		if errors.As(err, &pe) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":    pe.Error(),
				"position": pe.Pos,
			})
			return
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	partial := r.URL.Query().Get("partial") == "true"
	all := r.URL.Query().Get("all") == "true"

	root := s.parseRequest(w, r)
	if root == nil {
		return
	}

	opts := []query.Option{query.WithPartialMatch(partial)}
	var matches []queryMatch
	if all {
		for _, n := range query.SelectAll(root, p, opts...) {
			v, _ := n.Scalar()
			matches = append(matches, queryMatch{Node: n, Value: v})
		}
	} else if res := query.Select(root, p, opts...); res.Found {
		v, _ := res.Node.Scalar()
		matches = append(matches, queryMatch{Node: res.Node, Value: v})
	}

	if len(matches) > 0 {
		s.metrics.RecordQuery("found")
	} else {
		s.metrics.RecordQuery("missing")
	}
	if matches == nil {
		matches = []queryMatch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":    p.String(),
		"found":   len(matches) > 0,
		"results": matches,
	})
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	root := s.parseRequest(w, r)
	if root == nil {
		return
	}
	writeJSON(w, http.StatusOK, jsonify.Project(root))
}

func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	root := s.parseRequest(w, r)
	if root == nil {
		return
	}
	diags := s.linter.Run(root)
	if diags == nil {
		diags = []lint.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":       !lint.HasErrors(diags),
		"counts":      lint.Count(diags),
		"diagnostics": diags,
	})
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	code := ack.ApplicationAccept
	if v := r.URL.Query().Get("code"); v != "" {
		c, err := ack.ParseCode(v)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		code = c
	}

	root := s.parseRequest(w, r)
	if root == nil {
		return
	}
	reply, err := s.acks.Build(root, code, r.URL.Query().Get("text"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/hl7-v2")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, ast.String(reply))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
