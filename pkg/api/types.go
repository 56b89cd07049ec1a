package api

import (
	"github.com/platinummonkey/somcheck/pkg/checker"
	"github.com/platinummonkey/somcheck/pkg/progress"
	"github.com/platinummonkey/somcheck/pkg/storage"
)

// IssueResponse is a stored issue with its type spelled out.
type IssueResponse struct {
	CreationDate string `json:"creation_date"`
	Project      string `json:"project"`
	File         string `json:"file"`
	GUID         string `json:"guid"`
	Type         string `json:"issue_type"`
	Code         int    `json:"issue_code"`
	Description  string `json:"description"`
	PropertySet  string `json:"property_set,omitempty"`
	Attribute    string `json:"attribute,omitempty"`
	Value        string `json:"value,omitempty"`
}

func newIssueResponse(rec storage.IssueRecord) IssueResponse {
	return IssueResponse{
		CreationDate: rec.CreationDate,
		Project:      rec.Project,
		File:         rec.File,
		GUID:         rec.GUID,
		Type:         rec.Type.String(),
		Code:         int(rec.Type),
		Description:  rec.Description,
		PropertySet:  rec.PropertySet,
		Attribute:    rec.Attribute,
		Value:        rec.Value,
	}
}

// IssueList is a page of issues.
type IssueList struct {
	Issues []IssueResponse `json:"issues"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// CountsResponse maps issue type names to counts.
type CountsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

type IssueTypeResponse struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// EntityList is a page of entities.
type EntityList struct {
	Entities []storage.EntityRecord `json:"entities"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}

// StartCheckRequest is the body of POST /api/v1/checks.
type StartCheckRequest struct {
	Files   []string `json:"files"`
	Project string   `json:"project,omitempty"`
}

type StartCheckResponse struct {
	ID string `json:"id"`
}

// CheckResponse is the active or last run with its progress.
type CheckResponse struct {
	Report   *checker.Report                      `json:"report"`
	Progress progress.Snapshot                    `json:"progress"`
	Phases   map[progress.Phase]progress.Snapshot `json:"phases,omitempty"`
}
