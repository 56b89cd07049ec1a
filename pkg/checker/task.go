package checker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/somcheck/pkg/grouping"
	"github.com/platinummonkey/somcheck/pkg/instances"
	"github.com/platinummonkey/somcheck/pkg/observability"
	"github.com/platinummonkey/somcheck/pkg/progress"
	"github.com/platinummonkey/somcheck/pkg/schema"
	"github.com/platinummonkey/somcheck/pkg/storage"
	"github.com/platinummonkey/somcheck/pkg/validation"
)

// progressSteps is how many progress updates a file check sends at most.
const progressSteps = 20

// importFile reads one file. ok is false when the file will not be checked.
func (s *Scheduler) importFile(ctx context.Context, r *run, i int, path string) (*instances.File, bool) {
	if s.aborted.Load() {
		s.setFile(r, i, func(fr *FileResult) { fr.Status = FileAborted })
		r.agg.Report(progress.Update{Phase: progress.PhaseImporting, File: path, Done: true})
		return nil, false
	}

	start := time.Now()
	r.agg.Report(progress.Update{Phase: progress.PhaseImporting, File: path, Status: "importing " + path})
	ctx, span := observability.StartSpan(ctx, "checker.import", attribute.String("file", path))
	f, err := s.reader.Read(ctx, path)
	observability.EndSpan(span, err)

	if err != nil {
		if s.aborted.Load() || ctx.Err() != nil {
			s.setFile(r, i, func(fr *FileResult) { fr.Status = FileAborted })
			r.agg.Report(progress.Update{Phase: progress.PhaseImporting, File: path, Done: true})
			return nil, false
		}
		s.metrics.ObserveFile(PhaseImport, "failed", time.Since(start))
		s.fail(r, i, PhaseImport, err)
		return nil, false
	}

	s.metrics.ObserveFile(PhaseImport, "ok", time.Since(start))
	r.agg.Report(progress.Update{
		Phase:  progress.PhaseImporting,
		File:   path,
		Done:   true,
		Status: fmt.Sprintf("imported %s (%d instances)", f.Name(), f.Len()),
	})
	return f, true
}

// checkFile checks one imported file and writes its results. An abort
// before the write leaves the file's stored issues untouched.
func (s *Scheduler) checkFile(ctx context.Context, r *run, i int, f *instances.File) error {
	path := r.files[i]
	if s.aborted.Load() {
		s.setFile(r, i, func(fr *FileResult) { fr.Status = FileAborted })
		r.agg.Report(progress.Update{Phase: progress.PhaseChecking, File: path, Done: true, Status: "skipped " + f.Name()})
		return nil
	}

	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "checker.check_file",
		attribute.String("file", path),
		attribute.Int("instances", f.Len()))
	r.agg.Report(progress.Update{Phase: progress.PhaseChecking, File: path, Status: "checking " + f.Name()})

	res, err := s.checkInstances(r, path, f)
	if errors.Is(err, errAborted) {
		observability.EndSpan(span, nil)
		s.setFile(r, i, func(fr *FileResult) { fr.Status = FileAborted })
		r.agg.Report(progress.Update{Phase: progress.PhaseChecking, File: path, Done: true, Status: "aborted " + f.Name()})
		s.metrics.ObserveFile(PhaseCheck, "aborted", time.Since(start))
		return nil
	}
	s.metrics.AddInstances(len(res.batch.Entities))

	writeStart := time.Now()
	stats, err := s.store.WriteFile(ctx, res.batch)
	s.metrics.ObserveStoreWrite(time.Since(writeStart), stats.Failed)
	observability.EndSpan(span, err)
	if err != nil {
		s.metrics.ObserveFile(PhaseStore, "failed", time.Since(start))
		s.fail(r, i, PhaseStore, err)
		return err
	}
	for _, issue := range res.batch.Issues {
		s.metrics.AddIssue(issue.Type.String())
	}
	for range stats.Collisions {
		s.metrics.AddIssue(validation.IssueGUIDCollision.String())
	}
	s.metrics.ObserveFile(PhaseCheck, "ok", time.Since(start))

	s.setFile(r, i, func(fr *FileResult) {
		fr.Status = FileChecked
		fr.Instances = f.Len()
		fr.Skipped = res.skipped
		fr.Issues = stats.Issues
		fr.Stored = stats
	})
	r.agg.Report(progress.Update{
		Phase:  progress.PhaseChecking,
		File:   path,
		Done:   true,
		Status: fmt.Sprintf("checked %s: %d issues", f.Name(), stats.Issues),
	})
	return nil
}

type fileResult struct {
	batch   storage.FileBatch
	skipped int
}

// checkInstances runs the attribute checks of every instance in file order,
// then the structural group checks. The abort flag is sampled per instance.
// Results are stored under the file's base name.
func (s *Scheduler) checkInstances(r *run, path string, f *instances.File) (fileResult, error) {
	res := fileResult{batch: storage.FileBatch{Project: r.project, File: filepath.Base(path)}}
	all := f.Instances()
	step := max(len(all)/progressSteps, 1)

	for n, inst := range all {
		if s.aborted.Load() {
			return fileResult{}, errAborted
		}
		issues, entity, err := s.checkInstance(r.snapshot, inst)
		if err != nil {
			res.skipped++
			r.logger.WithError(err).WithField("guid", inst.GUID()).Warn("instance check skipped")
			continue
		}
		res.batch.Entities = append(res.batch.Entities, entity)
		res.batch.Issues = append(res.batch.Issues, issues...)
		if n%step == 0 {
			r.agg.Report(progress.Update{Phase: progress.PhaseChecking, File: path, Percent: n * 90 / len(all)})
		}
	}

	groupIssues := grouping.NewChecker(s.validator, r.snapshot).Check(grouping.Build(f), s.aborted.Load)
	if s.aborted.Load() {
		return fileResult{}, errAborted
	}
	res.batch.Issues = append(res.batch.Issues, groupIssues...)
	return res, nil
}

// checkInstance checks one instance. A panic becomes an error so the
// instance is skipped instead of failing the file.
func (s *Scheduler) checkInstance(snap *schema.Snapshot, inst instances.Instance) (issues []validation.Issue, entity storage.Entity, err error) {
	defer observability.RecoverToError(s.logger, "instance check", &err)

	entity = storage.Entity{GUID: inst.GUID(), Name: inst.Name(), Type: inst.Type()}
	if ident, ok := s.validator.IdentValue(inst); ok {
		entity.Classification = ident
	}
	obj, issue := s.validator.Identify(inst, snap)
	if issue != nil {
		return []validation.Issue{*issue}, entity, nil
	}
	return s.validator.CheckInstance(inst, obj), entity, nil
}
