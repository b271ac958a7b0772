// Package maintenance is the bundled pipeline for housekeeping on the
// data providers: listing what is stored, taking backups and archiving
// generated output.
package maintenance

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"codeberg.org/snonux/cardforge/internal/archive"
	"codeberg.org/snonux/cardforge/internal/pipeline"
	"codeberg.org/snonux/cardforge/internal/provider"
)

// Name is the name the pipeline is registered under
const Name = "maintenance"

const (
	StageAudit   = "audit"
	StageBackup  = "backup"
	StageArchive = "archive"
)

// auditKey holds map[provider name][]document id
const auditKey = "audit"

// NewPipeline builds the maintenance pipeline with the phases check
// (audit), snapshot (audit, backup) and rotate (archive)
func NewPipeline() (*pipeline.Pipeline, error) {
	p := pipeline.New(Name, "Inspect and back up stored documents")

	if err := p.AddStage(&auditStage{BaseStage: pipeline.BaseStage{
		StageName: StageAudit,
		Desc:      "List the documents of every data provider",
	}}); err != nil {
		return nil, err
	}
	if err := p.AddStage(&backupStage{BaseStage: pipeline.BaseStage{
		StageName: StageBackup,
		Desc:      "Back up every listed document of writable data providers",
		Deps:      []string{StageAudit},
	}}); err != nil {
		return nil, err
	}

	if err := p.AddStage(&archiveStage{
		BaseStage: pipeline.BaseStage{
			StageName: StageArchive,
			Desc:      "Move the directory named by archive_dir into its archive",
		},
		now: time.Now,
	}); err != nil {
		return nil, err
	}

	if err := p.AddPhase("check", StageAudit); err != nil {
		return nil, err
	}
	if err := p.AddPhase("snapshot", StageAudit, StageBackup); err != nil {
		return nil, err
	}
	if err := p.AddPhase("rotate", StageArchive); err != nil {
		return nil, err
	}
	return p, nil
}

type auditStage struct {
	pipeline.BaseStage
}

func (s *auditStage) ValidateContext(ctx *pipeline.ExecutionContext) []string {
	if len(ctx.Providers.Data) == 0 {
		return []string{"no data provider available"}
	}
	return nil
}

func (s *auditStage) Execute(ctx *pipeline.ExecutionContext) pipeline.Result {
	audit := make(map[string][]string, len(ctx.Providers.Data))
	var (
		errs  []string
		total int
	)
	for _, name := range providerNames(ctx.Providers.Data) {
		ids, err := ctx.Providers.Data[name].List()
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		audit[name] = ids
		total += len(ids)
		if ctx.Logger != nil {
			ctx.Logger.Info("maintenance: provider audited",
				zap.String("provider", name),
				zap.Int("documents", len(ids)),
				zap.Bool("writable", ctx.Providers.Writable(name)))
		}
	}

	data := map[string]any{auditKey: audit, "document_count": total}
	if len(errs) > 0 {
		ctx.Data[auditKey] = audit
		return pipeline.Partial(fmt.Sprintf("%d documents listed, %d providers failed", total, len(errs)), data, errs...)
	}
	return pipeline.Success(fmt.Sprintf("%d documents in %d providers", total, len(audit)), data)
}

type backupStage struct {
	pipeline.BaseStage
}

func (s *backupStage) ValidateContext(ctx *pipeline.ExecutionContext) []string {
	return s.CheckDependencies(ctx)
}

func (s *backupStage) Execute(ctx *pipeline.ExecutionContext) pipeline.Result {
	audit, _ := ctx.Data[auditKey].(map[string][]string)

	var (
		backups []string
		skipped []string
		errs    []string
	)
	for _, name := range providerNames(audit) {
		dp, ok := ctx.Providers.Data[name]
		if !ok {
			continue
		}
		backuper, ok := dp.(provider.Backuper)
		if !ctx.Providers.Writable(name) || !ok {
			skipped = append(skipped, name)
			continue
		}
		for _, id := range audit[name] {
			path, err := backuper.Backup(id)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s/%s: %v", name, id, err))
				continue
			}
			backups = append(backups, path)
		}
	}

	data := map[string]any{"backups": backups, "backup_skipped": skipped}
	switch {
	case len(errs) == 0:
		return pipeline.Success(fmt.Sprintf("%d documents backed up", len(backups)), data)
	case len(backups) == 0:
		return pipeline.Failure("no document backed up", errs...)
	default:
		return pipeline.Partial(fmt.Sprintf("%d documents backed up, %d failed", len(backups), len(errs)), data, errs...)
	}
}

type archiveStage struct {
	pipeline.BaseStage
	now func() time.Time
}

func (s *archiveStage) dir(ctx *pipeline.ExecutionContext) string {
	dir := ctx.Arg("archive_dir", ctx.Setting("archive_dir", ""))
	if dir == "" {
		return ""
	}
	return provider.ResolvePath(ctx.ProjectRoot, dir)
}

func (s *archiveStage) ValidateContext(ctx *pipeline.ExecutionContext) []string {
	if s.dir(ctx) == "" {
		return []string{"archive_dir is not set"}
	}
	return nil
}

func (s *archiveStage) Execute(ctx *pipeline.ExecutionContext) pipeline.Result {
	target, err := archive.Dir(s.dir(ctx), s.now())
	if err != nil {
		return pipeline.Failure("archiving failed", err.Error())
	}
	if ctx.Logger != nil {
		ctx.Logger.Info("maintenance: directory archived", zap.String("path", target))
	}
	return pipeline.Success("archived to "+target, map[string]any{"archived": target})
}

func providerNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
