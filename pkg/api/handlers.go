package api

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/platinummonkey/somcheck/pkg/checker"
	"github.com/platinummonkey/somcheck/pkg/httputil"
	"github.com/platinummonkey/somcheck/pkg/storage"
	"github.com/platinummonkey/somcheck/pkg/validation"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

func (s *Server) issueFilter(r *http.Request) (storage.IssueFilter, error) {
	var f storage.IssueFilter
	var err error
	f.Project = httputil.ParseQueryString(r, "project", "")
	f.File = httputil.ParseQueryString(r, "file", "")
	f.GUID = httputil.ParseQueryString(r, "guid", "")
	if f.Date, err = httputil.ParseQueryDate(r, "date", storage.DateLayout); err != nil {
		return f, err
	}
	if t := r.URL.Query().Get("type"); t != "" {
		if f.Type, err = validation.ParseIssueType(t); err != nil {
			return f, err
		}
	}
	f.Limit, f.Offset, err = httputil.Page(r, defaultPageSize, maxPageSize)
	return f, err
}

// listIssues handles GET /api/v1/issues
func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	filter, err := s.issueFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	records, err := s.store.Issues(r.Context(), filter)
	if err != nil {
		s.internalError(w, r, "failed to query issues", err)
		return
	}

	issues := make([]IssueResponse, len(records))
	for i, rec := range records {
		issues[i] = newIssueResponse(rec)
	}
	httputil.WriteSuccess(w, IssueList{Issues: issues, Limit: filter.Limit, Offset: filter.Offset})
}

// issueCounts handles GET /api/v1/issues/counts
func (s *Server) issueCounts(w http.ResponseWriter, r *http.Request) {
	filter, err := s.issueFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	counts, err := s.store.IssueCounts(r.Context(), filter)
	if err != nil {
		s.internalError(w, r, "failed to count issues", err)
		return
	}

	resp := CountsResponse{Counts: make(map[string]int, len(counts))}
	for t, n := range counts {
		resp.Counts[t.String()] = n
		resp.Total += n
	}
	httputil.WriteSuccess(w, resp)
}

// listIssueTypes handles GET /api/v1/issue-types
func (s *Server) listIssueTypes(w http.ResponseWriter, r *http.Request) {
	types := validation.IssueTypes()
	out := make([]IssueTypeResponse, len(types))
	for i, t := range types {
		out[i] = IssueTypeResponse{Code: int(t), Name: t.String()}
	}
	httputil.WriteSuccess(w, out)
}

// listEntities handles GET /api/v1/entities
func (s *Server) listEntities(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := httputil.Page(r, defaultPageSize, maxPageSize)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	filter := storage.EntityFilter{
		Project: httputil.ParseQueryString(r, "project", ""),
		File:    httputil.ParseQueryString(r, "file", ""),
		GUID:    httputil.ParseQueryString(r, "guid", ""),
		Limit:   limit,
		Offset:  offset,
	}
	entities, err := s.store.Entities(r.Context(), filter)
	if err != nil {
		s.internalError(w, r, "failed to query entities", err)
		return
	}
	if entities == nil {
		entities = []storage.EntityRecord{}
	}
	httputil.WriteSuccess(w, EntityList{Entities: entities, Limit: limit, Offset: offset})
}

// startCheck handles POST /api/v1/checks
func (s *Server) startCheck(w http.ResponseWriter, r *http.Request) {
	var req StartCheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Files) == 0 {
		httputil.WriteBadRequest(w, "files is required")
		return
	}
	files := make([]string, len(req.Files))
	for i, f := range req.Files {
		path, err := s.resolveModelPath(f)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		files[i] = path
	}

	id, err := s.runner.Start(r.Context(), checker.Request{Files: files, Project: req.Project})
	var failure checker.RunFailure
	switch {
	case errors.Is(err, checker.ErrRunInProgress):
		httputil.WriteConflict(w, err.Error())
		return
	case errors.As(err, &failure):
		httputil.WriteError(w, http.StatusUnprocessableEntity, failure)
		return
	case err != nil:
		s.internalError(w, r, "failed to start check run", err)
		return
	}
	w.Header().Set("Location", "/api/v1/checks/current")
	httputil.WriteAccepted(w, StartCheckResponse{ID: id})
}

// resolveModelPath keeps requested files inside the model root, if any.
// Symlinks are followed before the check.
func (s *Server) resolveModelPath(p string) (string, error) {
	if s.modelRoot == "" {
		return p, nil
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.modelRoot, p)
	}
	p = filepath.Clean(p)
	outside := fmt.Errorf("file %q is outside the model directory", p)
	if !within(s.modelRoot, p) {
		return "", outside
	}

	root, err := resolveExisting(s.modelRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve model directory: %w", err)
	}
	target, err := resolveExisting(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", p, err)
	}
	if !within(root, target) {
		return "", outside
	}
	return p, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExisting evaluates the symlinks of the longest existing prefix of p.
func resolveExisting(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	parent := filepath.Dir(p)
	if parent == p {
		return p, nil
	}
	dir, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(p)), nil
}

// currentCheck handles GET /api/v1/checks/current
func (s *Server) currentCheck(w http.ResponseWriter, r *http.Request) {
	report, ok := s.runner.Current()
	if !ok {
		httputil.WriteNotFoundError(w, "no check run yet")
		return
	}
	overall, phases := s.runner.Progress()
	httputil.WriteSuccess(w, CheckResponse{Report: report, Progress: overall, Phases: phases})
}

// abortCheck handles POST /api/v1/checks/current/abort
func (s *Server) abortCheck(w http.ResponseWriter, r *http.Request) {
	if !s.runner.Abort() {
		httputil.WriteConflict(w, "no check run is active")
		return
	}
	httputil.WriteAccepted(w, map[string]string{"status": "aborting"})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.WithError(err).WithField("path", r.URL.Path).Error(msg)
	httputil.WriteInternalError(w)
}
