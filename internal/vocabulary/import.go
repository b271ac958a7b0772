package vocabulary

import (
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"codeberg.org/snonux/cardforge/internal"
	"codeberg.org/snonux/cardforge/internal/audio"
	"codeberg.org/snonux/cardforge/internal/batch"
	"codeberg.org/snonux/cardforge/internal/pipeline"
	"codeberg.org/snonux/cardforge/internal/provider"
)

type importStage struct {
	pipeline.BaseStage
	translator Translator
	now        func() time.Time
}

func (s *importStage) wordsFile(ctx *pipeline.ExecutionContext) string {
	return provider.ResolvePath(ctx.ProjectRoot, ctx.Arg("words", ctx.Setting("words_file", "")))
}

func (s *importStage) ValidateContext(ctx *pipeline.ExecutionContext) []string {
	var errs []string
	if file := s.wordsFile(ctx); file == "" {
		errs = append(errs, "no word list given (argument words or setting words_file)")
	} else if _, err := os.Stat(file); err != nil {
		errs = append(errs, fmt.Sprintf("word list %s not readable: %v", file, err))
	}
	if len(ctx.Providers.Data) == 0 {
		errs = append(errs, "no data provider available")
	}
	return errs
}

func (s *importStage) Execute(ctx *pipeline.ExecutionContext) pipeline.Result {
	log := logger(ctx)
	entries, err := batch.ReadBatchFile(s.wordsFile(ctx))
	if err != nil {
		return pipeline.Failure("cannot read word list", err.Error())
	}

	known, errs := knownWords(ctx)
	tags := splitList(option(ctx, "tags", ""))
	now := time.Now
	if s.now != nil {
		now = s.now
	}

	var imported []string
	skipped := 0
	for _, entry := range entries {
		bulgarian := entry.Bulgarian
		if entry.NeedsTranslation {
			if s.translator == nil {
				errs = append(errs, fmt.Sprintf("%s: no translator to find the Bulgarian word", entry.Translation))
				continue
			}
			bulgarian, err = s.translator.TranslateToBulgarian(ctx.Context(), entry.Translation)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", entry.Translation, err))
				continue
			}
			log.Info("vocabulary: translated to Bulgarian", zap.String("english", entry.Translation), zap.String("bulgarian", bulgarian))
		}
		if err := audio.ValidateBulgarianText(bulgarian); err != nil {
			errs = append(errs, fmt.Sprintf("invalid word %q: %v", bulgarian, err))
			continue
		}
		if _, exists := known[bulgarian]; exists {
			skipped++
			continue
		}

		word := &Word{
			ID:          internal.GenerateCardID(bulgarian),
			Bulgarian:   bulgarian,
			Translation: entry.Translation,
			Tags:        tags,
			CreatedAt:   now().UTC().Format(time.RFC3339),
		}
		if word.Translation == "" && s.translator != nil {
			if english, err := s.translator.TranslateToEnglish(ctx.Context(), bulgarian); err == nil {
				word.Translation = english
			} else {
				log.Warn("vocabulary: translation failed", zap.String("word", bulgarian), zap.Error(err))
			}
		}

		if err := saveWord(ctx, word); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", bulgarian, err))
			continue
		}
		known[bulgarian] = word.ID
		imported = append(imported, word.ID)
		log.Info("vocabulary: word imported", zap.String("word", bulgarian), zap.String("id", word.ID))
	}

	data := map[string]any{"imported": imported, "skipped": skipped}
	if len(imported) == 0 && skipped > 0 && len(errs) == 0 {
		return pipeline.Success(fmt.Sprintf("nothing new, %d words already stored", skipped), data)
	}
	return outcome("words imported", len(imported), errs, data)
}

// knownWords maps the Bulgarian text of every stored word to its ID
func knownWords(ctx *pipeline.ExecutionContext) (map[string]string, []string) {
	known := make(map[string]string)
	words, errs := readWords(ctx)
	for _, w := range words {
		known[w.Bulgarian] = w.ID
	}
	return known, errs
}

// readWords loads every word of every visible data provider, in provider
// name order
func readWords(ctx *pipeline.ExecutionContext) ([]*Word, []string) {
	names := make([]string, 0, len(ctx.Providers.Data))
	for name := range ctx.Providers.Data {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		words []*Word
		errs  []string
	)
	for _, name := range names {
		dp := ctx.Providers.Data[name]
		ids, err := dp.List()
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		for _, id := range ids {
			doc, err := dp.Load(id)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s/%s: %v", name, id, err))
				continue
			}
			if w, ok := WordFromDocument(id, doc); ok {
				w.Source = name
				words = append(words, w)
			}
		}
	}
	return words, errs
}

// saveWord stores a word with the provider it came from, or the provider
// that manages its ID
func saveWord(ctx *pipeline.ExecutionContext, w *Word) error {
	var (
		dp   provider.DataProvider
		name = w.Source
	)
	if name != "" {
		dp = ctx.Providers.Data[name]
	}
	if dp == nil {
		var ok bool
		if dp, name, ok = ctx.Providers.DataFor(w.ID); !ok {
			return fmt.Errorf("no data provider manages %s", w.ID)
		}
	}
	if !ctx.Providers.Writable(name) {
		return fmt.Errorf("data provider %s is read-only", name)
	}
	if err := dp.Save(w.ID, w.Document()); err != nil {
		return err
	}
	w.Source = name
	w.dirty = false
	return nil
}
