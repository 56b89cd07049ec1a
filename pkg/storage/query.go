package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/somcheck/pkg/validation"
)

// IssueFilter narrows issue queries. Zero fields match everything.
type IssueFilter struct {
	Project string
	File    string
	Date    string // YYYY-MM-DD
	GUID    string // raw GUID
	Type    validation.IssueType
	Limit   int
	Offset  int
}

// EntityFilter narrows entity queries.
type EntityFilter struct {
	Project string
	File    string
	GUID    string
	Limit   int
	Offset  int
}

// IssueRecord is a stored issue together with its scope.
type IssueRecord struct {
	validation.Issue
	CreationDate string `json:"creation_date"`
	Project      string `json:"project"`
	File         string `json:"file"`
}

// EntityRecord is a stored entity.
type EntityRecord struct {
	GUID           string `json:"guid"`
	Name           string `json:"name"`
	Project        string `json:"project"`
	Type           string `json:"type"`
	File           string `json:"file"`
	Classification string `json:"classification"`
}

// where collects conditions with numbered placeholders.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(column string, value any) {
	w.args = append(w.args, value)
	w.conds = append(w.conds, fmt.Sprintf("%s = $%d", column, len(w.args)))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *where) page(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		w.args = append(w.args, limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(w.args))
		if offset > 0 {
			w.args = append(w.args, offset)
			fmt.Fprintf(&b, " OFFSET $%d", len(w.args))
		}
	}
	return b.String()
}

func issueWhere(f IssueFilter) *where {
	w := &where{}
	if f.Project != "" {
		w.add("project", f.Project)
	}
	if f.File != "" {
		w.add("file", f.File)
	}
	if f.Date != "" {
		w.add("creation_date", f.Date)
	}
	if f.GUID != "" {
		w.add("guid", ObfuscateGUID(f.GUID))
	}
	if f.Type != 0 {
		w.add("issue_type", int(f.Type))
	}
	return w
}

// Issues lists stored issues ordered by date, file and GUID.
func (s *Store) Issues(ctx context.Context, filter IssueFilter) ([]IssueRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	w := issueWhere(filter)
	query := `
		SELECT creation_date, guid, description, issue_type, property_set, attribute, value, project, file
		FROM issues` + w.String() + `
		ORDER BY creation_date DESC, file, guid, issue_type` + w.page(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var records []IssueRecord
	for rows.Next() {
		var (
			r         IssueRecord
			guid      string
			issueType int
		)
		if err := rows.Scan(&r.CreationDate, &guid, &r.Description, &issueType,
			&r.PropertySet, &r.Attribute, &r.Value, &r.Project, &r.File); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		r.GUID = RevealGUID(guid)
		r.Type = validation.IssueType(issueType)
		records = append(records, r)
	}
	return records, rows.Err()
}

// IssueCounts counts stored issues per type.
func (s *Store) IssueCounts(ctx context.Context, filter IssueFilter) (map[validation.IssueType]int, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	filter.Type = 0
	w := issueWhere(filter)
	rows, err := s.db.QueryContext(ctx,
		`SELECT issue_type, COUNT(*) FROM issues`+w.String()+` GROUP BY issue_type`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count issues: %w", err)
	}
	defer rows.Close()

	counts := make(map[validation.IssueType]int)
	for rows.Next() {
		var typ, n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("failed to scan issue count: %w", err)
		}
		counts[validation.IssueType(typ)] = n
	}
	return counts, rows.Err()
}

// Entities lists stored entities ordered by file and GUID.
func (s *Store) Entities(ctx context.Context, filter EntityFilter) ([]EntityRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	w := &where{}
	if filter.Project != "" {
		w.add("project", filter.Project)
	}
	if filter.File != "" {
		w.add("file", filter.File)
	}
	if filter.GUID != "" {
		w.add("guid_obfuscated", ObfuscateGUID(filter.GUID))
	}
	query := `
		SELECT guid, name, project, type, file, classification
		FROM entities` + w.String() + `
		ORDER BY file, guid` + w.page(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var records []EntityRecord
	for rows.Next() {
		var r EntityRecord
		if err := rows.Scan(&r.GUID, &r.Name, &r.Project, &r.Type, &r.File, &r.Classification); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

var _ IssueStore = (*Store)(nil)
