package vocabulary

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"codeberg.org/snonux/cardforge/internal/pipeline"
	"codeberg.org/snonux/cardforge/internal/provider"
)

// Name is the name the pipeline is registered under
const Name = "vocabulary"

// Stage names
const (
	StageImport    = "import"
	StageLoad      = "load"
	StageAudio     = "audio"
	StagePhonetics = "phonetics"
	StageImages    = "images"
	StageSave      = "save"
	StageSync      = "sync"
)

// DefaultDeck is used when neither an argument nor the pipeline settings
// name a deck
const DefaultDeck = "Bulgarian Vocabulary"

// wordsKey holds the loaded []*Word in the execution context
const wordsKey = "words"

// Translator translates words in both directions
type Translator interface {
	TranslateToEnglish(ctx context.Context, text string) (string, error)
	TranslateToBulgarian(ctx context.Context, text string) (string, error)
}

// NewPipeline builds the vocabulary pipeline. translator may be nil, in
// which case English-only entries cannot be imported.
func NewPipeline(translator Translator) (*pipeline.Pipeline, error) {
	p := pipeline.New(Name, "Generate Bulgarian vocabulary flashcards with audio, pronunciation and images")

	stages := []pipeline.Stage{
		&importStage{
			BaseStage:  pipeline.BaseStage{StageName: StageImport, Desc: "Import new words from a word list"},
			translator: translator,
		},
		&loadStage{BaseStage: pipeline.BaseStage{StageName: StageLoad, Desc: "Load stored words"}},
		&audioStage{BaseStage: pipeline.BaseStage{StageName: StageAudio, Desc: "Generate speech for each word", Deps: []string{StageLoad}}},
		&phoneticsStage{BaseStage: pipeline.BaseStage{StageName: StagePhonetics, Desc: "Fetch IPA pronunciation for each word", Deps: []string{StageLoad}}},
		&imagesStage{BaseStage: pipeline.BaseStage{StageName: StageImages, Desc: "Generate or find an image for each word", Deps: []string{StageLoad}}},
		&saveStage{BaseStage: pipeline.BaseStage{StageName: StageSave, Desc: "Store changed words", Deps: []string{StageLoad}}},
		&syncStage{BaseStage: pipeline.BaseStage{StageName: StageSync, Desc: "Send the words to a flashcard application", Deps: []string{StageLoad}}},
	}
	for _, stage := range stages {
		if err := p.AddStage(stage); err != nil {
			return nil, err
		}
	}

	phases := []struct {
		name   string
		stages []string
	}{
		{"prepare", []string{StageImport}},
		{"generate", []string{StageLoad, StageAudio, StagePhonetics, StageImages, StageSave}},
		{"export", []string{StageLoad, StageSync}},
		{"full", []string{StageImport, StageLoad, StageAudio, StagePhonetics, StageImages, StageSave, StageSync}},
	}
	for _, phase := range phases {
		if err := p.AddPhase(phase.name, phase.stages...); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// option returns a run argument, else a pipeline setting, else def
func option(ctx *pipeline.ExecutionContext, key, def string) string {
	return ctx.Arg(key, ctx.Setting(key, def))
}

func logger(ctx *pipeline.ExecutionContext) *zap.Logger {
	if ctx.Logger == nil {
		return zap.NewNop()
	}
	return ctx.Logger
}

// loadedWords returns the words the load stage put into the context
func loadedWords(ctx *pipeline.ExecutionContext) []*Word {
	words, _ := ctx.Data[wordsKey].([]*Word)
	return words
}

// mediaDir is the directory generated files are written to
func mediaDir(ctx *pipeline.ExecutionContext) string {
	return provider.ResolvePath(ctx.ProjectRoot, option(ctx, "media_dir", "media"))
}

// needsFile reports whether a word's media file has to be (re)generated
func needsFile(ctx *pipeline.ExecutionContext, path string) bool {
	if option(ctx, "force", "") == "true" || path == "" {
		return true
	}
	_, err := os.Stat(provider.ResolvePath(ctx.ProjectRoot, path))
	return err != nil
}

// outcome turns a count of handled items and item errors into a result:
// success without errors, failure when nothing worked, partial otherwise
func outcome(what string, done int, errs []string, data map[string]any) pipeline.Result {
	switch {
	case len(errs) == 0:
		return pipeline.Success(fmt.Sprintf("%d %s", done, what), data)
	case done == 0:
		return pipeline.Failure(fmt.Sprintf("no %s, %d errors", what, len(errs)), errs...)
	default:
		return pipeline.Partial(fmt.Sprintf("%d %s, %d errors", done, what, len(errs)), data, errs...)
	}
}

// splitList splits a comma separated option
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
