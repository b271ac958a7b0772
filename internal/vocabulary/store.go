package vocabulary

import (
	"fmt"

	"go.uber.org/zap"

	"codeberg.org/snonux/cardforge/internal/pipeline"
)

type loadStage struct {
	pipeline.BaseStage
}

func (s *loadStage) ValidateContext(ctx *pipeline.ExecutionContext) []string {
	if len(ctx.Providers.Data) == 0 {
		return []string{"no data provider available"}
	}
	return nil
}

func (s *loadStage) Execute(ctx *pipeline.ExecutionContext) pipeline.Result {
	words, errs := readWords(ctx)
	ctx.Data[wordsKey] = words

	logger(ctx).Info("vocabulary: words loaded", zap.Int("count", len(words)), zap.Int("errors", len(errs)))
	if len(errs) > 0 {
		return pipeline.Partial(fmt.Sprintf("%d words loaded, %d errors", len(words), len(errs)),
			map[string]any{"word_count": len(words)}, errs...)
	}
	return pipeline.Success(fmt.Sprintf("%d words loaded", len(words)), map[string]any{"word_count": len(words)})
}

type saveStage struct {
	pipeline.BaseStage
}

func (s *saveStage) ValidateContext(ctx *pipeline.ExecutionContext) []string {
	return s.CheckDependencies(ctx)
}

func (s *saveStage) Execute(ctx *pipeline.ExecutionContext) pipeline.Result {
	var (
		saved int
		errs  []string
	)
	for _, w := range loadedWords(ctx) {
		if !w.Dirty() {
			continue
		}
		if err := saveWord(ctx, w); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", w.Bulgarian, err))
			continue
		}
		saved++
	}
	return outcome("words saved", saved, errs, map[string]any{"saved": saved})
}
