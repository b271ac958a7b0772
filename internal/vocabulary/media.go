package vocabulary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"codeberg.org/snonux/cardforge/internal"
	"codeberg.org/snonux/cardforge/internal/pipeline"
	"codeberg.org/snonux/cardforge/internal/provider"
)

// mediaPath is <media_dir>/<card id>/<word><suffix>
func mediaPath(ctx *pipeline.ExecutionContext, w *Word, suffix string) string {
	return filepath.Join(mediaDir(ctx), w.ID, internal.SanitizeFilename(w.Bulgarian)+suffix)
}

// adopt points field at a file left by an earlier run whose word was never
// stored. It reports whether the word still needs a request.
func adopt(ctx *pipeline.ExecutionContext, w *Word, field *string, path string) bool {
	if !needsFile(ctx, *field) {
		return false
	}
	if option(ctx, "force", "") == "true" {
		return true
	}
	if _, err := os.Stat(path); err != nil {
		return true
	}
	*field = relativePath(ctx.ProjectRoot, path)
	w.dirty = true
	logger(ctx).Info("vocabulary: existing file adopted", zap.String("word", w.Bulgarian), zap.String("path", path))
	return false
}

// generator is what the audio and image providers have in common
type generator interface {
	Name() string
	GenerateBatch(ctx context.Context, reqs []provider.Request) []provider.Result
}

// generate sends one request per word as a batch and hands each
// successful result to apply. Every updated word is stored right away so
// a later failure in the phase does not lose what was already paid for; a
// word that cannot be stored stays dirty for the save stage.
func generate(ctx *pipeline.ExecutionContext, gen generator, words []*Word, reqs []provider.Request, apply func(*Word, provider.Result)) (int, []string) {
	if len(reqs) == 0 {
		return 0, nil
	}
	log := logger(ctx).With(zap.String("provider", gen.Name()))

	var (
		done int
		errs []string
	)
	for i, res := range gen.GenerateBatch(ctx.Context(), reqs) {
		w := words[i]
		if !res.Success {
			errs = append(errs, fmt.Sprintf("%s: %v", w.Bulgarian, res.Err))
			log.Warn("vocabulary: generation failed", zap.String("word", w.Bulgarian), zap.String("kind", reqs[i].Kind), zap.Error(res.Err))
			continue
		}
		apply(w, res)
		w.dirty = true
		done++
		if err := saveWord(ctx, w); err != nil {
			log.Warn("vocabulary: word not stored", zap.String("word", w.Bulgarian), zap.Error(err))
		}
		log.Debug("vocabulary: generated", zap.String("word", w.Bulgarian), zap.String("kind", reqs[i].Kind), zap.String("path", res.OutputPath))
	}
	return done, errs
}

type audioStage struct {
	pipeline.BaseStage
}

func (s *audioStage) ValidateContext(ctx *pipeline.ExecutionContext) []string {
	errs := s.CheckDependencies(ctx)
	if _, ok := ctx.Providers.FirstAudio(option(ctx, "audio_provider", "")); !ok {
		errs = append(errs, "no audio provider available")
	}
	return errs
}

func (s *audioStage) Execute(ctx *pipeline.ExecutionContext) pipeline.Result {
	ap, _ := ctx.Providers.FirstAudio(option(ctx, "audio_provider", ""))
	format := strings.TrimPrefix(option(ctx, "audio_format", "mp3"), ".")

	var params map[string]any
	if voice := option(ctx, "voice", ""); voice != "" {
		params = map[string]any{"voice": voice}
	}

	var (
		words []*Word
		reqs  []provider.Request
	)
	for _, w := range loadedWords(ctx) {
		path := mediaPath(ctx, w, "."+format)
		if !adopt(ctx, w, &w.AudioFile, path) {
			continue
		}
		words = append(words, w)
		reqs = append(reqs, provider.Request{
			Kind:       provider.KindSpeech,
			Content:    w.Bulgarian,
			Params:     params,
			OutputPath: path,
		})
	}

	done, errs := generate(ctx, ap, words, reqs, func(w *Word, res provider.Result) {
		w.AudioFile = relativePath(ctx.ProjectRoot, res.OutputPath)
	})
	return outcome("audio files generated", done, errs, map[string]any{"audio_generated": done})
}

type phoneticsStage struct {
	pipeline.BaseStage
}

// pick prefers phonetic_provider, then audio_provider
func (s *phoneticsStage) pick(ctx *pipeline.ExecutionContext) (provider.AudioProvider, bool) {
	return ctx.Providers.FirstAudio(option(ctx, "phonetic_provider", option(ctx, "audio_provider", "")))
}

func (s *phoneticsStage) ValidateContext(ctx *pipeline.ExecutionContext) []string {
	errs := s.CheckDependencies(ctx)
	if _, ok := s.pick(ctx); !ok {
		errs = append(errs, "no audio provider available for pronunciation")
	}
	return errs
}

func (s *phoneticsStage) Execute(ctx *pipeline.ExecutionContext) pipeline.Result {
	ap, _ := s.pick(ctx)
	force := option(ctx, "force", "") == "true"

	var (
		words []*Word
		reqs  []provider.Request
	)
	for _, w := range loadedWords(ctx) {
		if w.Phonetic != "" && !force {
			continue
		}
		words = append(words, w)
		reqs = append(reqs, provider.Request{
			Kind:       provider.KindPronunciation,
			Content:    w.Bulgarian,
			OutputPath: filepath.Join(mediaDir(ctx), w.ID, "phonetic.txt"),
		})
	}

	done, errs := generate(ctx, ap, words, reqs, func(w *Word, res provider.Result) {
		if phonetic, ok := res.Metadata["phonetic"].(string); ok {
			w.Phonetic = phonetic
		}
	})
	return outcome("pronunciations fetched", done, errs, map[string]any{"phonetics_generated": done})
}

type imagesStage struct {
	pipeline.BaseStage
}

func (s *imagesStage) ValidateContext(ctx *pipeline.ExecutionContext) []string {
	errs := s.CheckDependencies(ctx)
	if _, ok := ctx.Providers.FirstImage(option(ctx, "image_provider", "")); !ok {
		errs = append(errs, "no image provider available")
	}
	return errs
}

func (s *imagesStage) Execute(ctx *pipeline.ExecutionContext) pipeline.Result {
	ip, _ := ctx.Providers.FirstImage(option(ctx, "image_provider", ""))
	format := strings.TrimPrefix(option(ctx, "image_format", "png"), ".")

	var (
		words []*Word
		reqs  []provider.Request
	)
	for _, w := range loadedWords(ctx) {
		path := mediaPath(ctx, w, "."+format)
		if !adopt(ctx, w, &w.ImageFile, path) {
			continue
		}
		req := provider.Request{
			Kind:       provider.KindImage,
			Content:    w.Bulgarian,
			OutputPath: path,
		}
		if w.Translation != "" {
			req.Params = map[string]any{"translation": w.Translation}
		}
		words = append(words, w)
		reqs = append(reqs, req)
	}

	done, errs := generate(ctx, ip, words, reqs, func(w *Word, res provider.Result) {
		w.ImageFile = relativePath(ctx.ProjectRoot, res.OutputPath)
		if english, ok := res.Metadata["translation"].(string); ok && w.Translation == "" {
			w.Translation = english
		}
	})
	return outcome("images generated", done, errs, map[string]any{"images_generated": done})
}
