// Package api serves stored check results over HTTP and controls check runs.
//
// Routes:
//
//	GET  /api/v1/issues                 ?project=&file=&date=&guid=&type=&limit=&offset=
//	GET  /api/v1/issues/counts          issue counts per type, same filters
//	GET  /api/v1/issue-types
//	GET  /api/v1/entities               ?project=&file=&guid=&limit=&offset=
//	POST /api/v1/checks                 {"files": [...], "project": "..."}
//	GET  /api/v1/checks/current
//	POST /api/v1/checks/current/abort
//	GET  /healthz, /readyz, /metrics
//
// A started run answers 202 immediately; poll /api/v1/checks/current for its
// progress. A second start while a run is active answers 409.
package api
