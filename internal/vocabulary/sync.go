package vocabulary

import (
	"fmt"

	"go.uber.org/zap"

	"codeberg.org/snonux/cardforge/internal/anki"
	"codeberg.org/snonux/cardforge/internal/pipeline"
	"codeberg.org/snonux/cardforge/internal/provider"
)

type syncStage struct {
	pipeline.BaseStage
}

func (s *syncStage) ValidateContext(ctx *pipeline.ExecutionContext) []string {
	errs := s.CheckDependencies(ctx)
	if _, ok := ctx.Providers.FirstSync(option(ctx, "sync_provider", "")); !ok {
		errs = append(errs, "no sync provider available")
	}
	return errs
}

func (s *syncStage) Execute(ctx *pipeline.ExecutionContext) pipeline.Result {
	sp, _ := ctx.Providers.FirstSync(option(ctx, "sync_provider", ""))
	deck := option(ctx, "deck", DefaultDeck)
	log := logger(ctx).With(zap.String("provider", sp.Name()), zap.String("deck", deck))

	if err := sp.TestConnection(ctx.Context()); err != nil {
		return pipeline.Failure(fmt.Sprintf("%s not reachable", sp.Name()), err.Error())
	}

	var errs []string
	report, err := sp.SyncTemplates(ctx.Context(), []provider.NoteTemplate{anki.DefaultTemplate()})
	if err != nil {
		return pipeline.Failure("note type sync failed", err.Error())
	}
	errs = append(errs, itemErrors(report)...)

	words := loadedWords(ctx)
	cards := make([]provider.Card, 0, len(words))
	for _, w := range words {
		cards = append(cards, w.Card(ctx.ProjectRoot))
	}

	report, err = sp.SyncCards(ctx.Context(), deck, cards)
	if err != nil {
		return pipeline.Failure("card sync failed", err.Error())
	}
	errs = append(errs, itemErrors(report)...)
	log.Info("vocabulary: deck synced",
		zap.Int("created", report.Created), zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped), zap.Int("failed", len(report.Failed)))

	data := map[string]any{
		"deck":          deck,
		"cards_created": report.Created,
		"cards_updated": report.Updated,
		"cards_skipped": report.Skipped,
		"sync_provider": sp.Name(),
	}
	done := report.Created + report.Updated + report.Skipped
	return outcome(fmt.Sprintf("cards synced to %s", deck), done, errs, data)
}

func itemErrors(report provider.SyncReport) []string {
	errs := make([]string, 0, len(report.Failed))
	for _, f := range report.Failed {
		errs = append(errs, fmt.Sprintf("%s: %v", f.Item, f.Err))
	}
	return errs
}
