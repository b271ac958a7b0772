package vocabulary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"codeberg.org/snonux/cardforge/internal/anki"
	"codeberg.org/snonux/cardforge/internal/pipeline"
	"codeberg.org/snonux/cardforge/internal/provider"
	"codeberg.org/snonux/cardforge/internal/storage"
	"codeberg.org/snonux/cardforge/internal/testutil"
)

func newPipeline(t *testing.T, translator Translator) *pipeline.Pipeline {
	t.Helper()
	p, err := NewPipeline(translator)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return p
}

func newContext(t *testing.T, root string) *pipeline.ExecutionContext {
	t.Helper()
	ctx := pipeline.NewExecutionContext(Name, root)
	ctx.Logger = zaptest.NewLogger(t)
	return ctx
}

// wordsByBulgarian decodes the stored words of a mock store
func wordsByBulgarian(t *testing.T, dp *testutil.MockDataProvider) map[string]*Word {
	t.Helper()
	words := make(map[string]*Word)
	for id, doc := range dp.Docs {
		w, ok := WordFromDocument(id, doc)
		if !ok {
			t.Fatalf("document %s is not a word: %v", id, doc)
		}
		words[w.Bulgarian] = w
	}
	return words
}

func TestNewPipeline(t *testing.T) {
	p := newPipeline(t, nil)

	got := make(map[string][]string)
	for _, phase := range p.Phases() {
		got[phase.Name] = phase.Stages
	}
	want := map[string][]string{
		"prepare":  {"import"},
		"generate": {"load", "audio", "phonetics", "images", "save"},
		"export":   {"load", "sync"},
		"full":     {"import", "load", "audio", "phonetics", "images", "save", "sync"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}

	if len(p.Stages()) != 7 {
		t.Errorf("got %d stages, want 7", len(p.Stages()))
	}
}

func TestImportStage(t *testing.T) {
	root := testutil.CreateProjectDirectory(t)
	wordsFile := filepath.Join(root, "words.txt")
	testutil.CreateTestFile(t, wordsFile, []byte("ябълка = apple\nкотка\n= dog\nхляб\nhello\n"))

	store := testutil.NewMockDataProvider()
	store.Docs["1_existing"] = provider.Document{"id": "1_existing", "bulgarian": "хляб", "translation": "bread"}

	translator := &testutil.MockTranslator{
		Translations: map[string]string{"котка": "cat", "куче": "dog"},
		Reverse:      map[string]string{"dog": "куче"},
	}

	ctx := newContext(t, root)
	ctx.Providers.Data["words"] = store
	ctx.Args["words"] = "words.txt"
	ctx.Args["tags"] = "lesson1, animals"

	result, err := newPipeline(t, translator).ExecuteStage(StageImport, ctx)
	if err != nil {
		t.Fatalf("ExecuteStage() error = %v", err)
	}
	if result.Status != pipeline.StatusPartial {
		t.Fatalf("status = %v, want partial (%s %v)", result.Status, result.Message, result.Errors)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "hello") {
		t.Errorf("errors = %v, want one about hello", result.Errors)
	}
	if imported := result.Data["imported"].([]string); len(imported) != 3 {
		t.Errorf("imported %v, want 3 words", imported)
	}
	if result.Data["skipped"] != 1 {
		t.Errorf("skipped = %v, want 1", result.Data["skipped"])
	}

	words := wordsByBulgarian(t, store)
	wantTranslations := map[string]string{"ябълка": "apple", "котка": "cat", "куче": "dog", "хляб": "bread"}
	for bg, en := range wantTranslations {
		w, ok := words[bg]
		if !ok {
			t.Errorf("word %s not stored", bg)
			continue
		}
		if w.Translation != en {
			t.Errorf("%s translation = %q, want %q", bg, w.Translation, en)
		}
	}
	if diff := cmp.Diff([]string{"lesson1", "animals"}, words["котка"].Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if words["котка"].CreatedAt == "" {
		t.Error("created_at not set")
	}

	// A partial result is not completed and its errors reach the context
	if ctx.IsComplete(StageImport) {
		t.Error("partial import marked complete")
	}
	if len(ctx.Errors) != 1 {
		t.Errorf("ctx.Errors = %v", ctx.Errors)
	}
}

func TestImportStage_WithoutTranslator(t *testing.T) {
	root := t.TempDir()
	testutil.CreateTestFile(t, filepath.Join(root, "words.txt"), []byte("= dog\n"))

	ctx := newContext(t, root)
	ctx.Providers.Data["words"] = testutil.NewMockDataProvider()
	ctx.Config["words_file"] = "words.txt"

	result, err := newPipeline(t, nil).ExecuteStage(StageImport, ctx)
	if err != nil {
		t.Fatalf("ExecuteStage() error = %v", err)
	}
	if result.Status != pipeline.StatusFailure {
		t.Errorf("status = %v, want failure", result.Status)
	}
}

func TestImportStage_Validation(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]any
		withData bool
		wantErrs int
	}{
		{name: "no word list", withData: true, wantErrs: 1},
		{name: "missing word list", args: map[string]any{"words": "nope.txt"}, withData: true, wantErrs: 1},
		{name: "no data provider", args: map[string]any{"words": "words.txt"}, wantErrs: 1},
		{name: "nothing", wantErrs: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			testutil.CreateTestFile(t, filepath.Join(root, "words.txt"), []byte("ябълка\n"))

			ctx := newContext(t, root)
			for k, v := range tt.args {
				ctx.Args[k] = v
			}
			if tt.withData {
				ctx.Providers.Data["words"] = testutil.NewMockDataProvider()
			}

			result, err := newPipeline(t, nil).ExecuteStage(StageImport, ctx)
			if err != nil {
				t.Fatalf("ExecuteStage() error = %v", err)
			}
			if result.Status != pipeline.StatusFailure || len(result.Errors) != tt.wantErrs {
				t.Errorf("result = %v %v, want failure with %d errors", result.Status, result.Errors, tt.wantErrs)
			}
			if len(ctx.Errors) != 0 {
				t.Errorf("validation failure touched ctx.Errors: %v", ctx.Errors)
			}
		})
	}
}

// generateFixture stores two words and wires mock media providers
type generateFixture struct {
	root   string
	store  *testutil.MockDataProvider
	speech *testutil.MockMediaProvider
	images *testutil.MockMediaProvider
}

func newGenerateFixture(t *testing.T) *generateFixture {
	t.Helper()
	f := &generateFixture{
		root:   testutil.CreateProjectDirectory(t),
		store:  testutil.NewMockDataProvider(),
		speech: testutil.NewMockMediaProvider("openai"),
		images: testutil.NewMockMediaProvider("pixabay"),
	}
	f.speech.Metadata = map[string]any{"phonetic": "[ˈjabəlkə]"}
	f.images.Metadata = map[string]any{"translation": "apple"}
	f.store.Docs["1_apple"] = provider.Document{"id": "1_apple", "bulgarian": "ябълка"}
	f.store.Docs["2_cat"] = provider.Document{"id": "2_cat", "bulgarian": "котка", "translation": "cat"}
	return f
}

func (f *generateFixture) context(t *testing.T) *pipeline.ExecutionContext {
	ctx := newContext(t, f.root)
	ctx.Providers.Data["words"] = f.store
	ctx.Providers.Audio["openai"] = f.speech
	ctx.Providers.Image["pixabay"] = f.images
	return ctx
}

func TestGeneratePhase(t *testing.T) {
	f := newGenerateFixture(t)
	ctx := f.context(t)

	results, err := newPipeline(t, nil).ExecutePhase("generate", ctx)
	if err != nil {
		t.Fatalf("ExecutePhase() error = %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	for i, r := range results {
		if !r.OK() {
			t.Errorf("stage %d: %v %s %v", i, r.Status, r.Message, r.Errors)
		}
	}
	// Words are stored as soon as their media exists
	if ctx.Data["saved"] != 0 {
		t.Errorf("saved = %v, want 0", ctx.Data["saved"])
	}

	words := wordsByBulgarian(t, f.store)
	apple := words["ябълка"]
	if apple.AudioFile != "media/1_apple/ябълка.mp3" {
		t.Errorf("audio_file = %q", apple.AudioFile)
	}
	if apple.ImageFile != "media/1_apple/ябълка.png" {
		t.Errorf("image_file = %q", apple.ImageFile)
	}
	if apple.Phonetic != "[ˈjabəlkə]" {
		t.Errorf("phonetic = %q", apple.Phonetic)
	}
	if apple.Translation != "apple" {
		t.Errorf("translation from the image provider not kept: %q", apple.Translation)
	}
	if words["котка"].Translation != "cat" {
		t.Errorf("existing translation overwritten: %q", words["котка"].Translation)
	}
	testutil.AssertFileExists(t, filepath.Join(f.root, "media", "1_apple", "ябълка.mp3"))
	testutil.AssertFileExists(t, filepath.Join(f.root, "media", "2_cat", "котка.png"))

	kinds := map[string]int{}
	for _, req := range f.speech.Requests {
		kinds[req.Kind]++
	}
	if kinds[provider.KindSpeech] != 2 || kinds[provider.KindPronunciation] != 2 {
		t.Errorf("audio request kinds = %v", kinds)
	}
	for _, req := range f.images.Requests {
		if req.Content == "котка" && req.Param("translation", "") != "cat" {
			t.Errorf("image request for котка without translation: %+v", req)
		}
	}

	// A second run finds everything in place
	ctx = f.context(t)
	if _, err := newPipeline(t, nil).ExecutePhase("generate", ctx); err != nil {
		t.Fatalf("ExecutePhase() error = %v", err)
	}
	if len(f.speech.Requests) != 4 || len(f.images.Requests) != 2 {
		t.Errorf("second run sent requests: audio %d, image %d", len(f.speech.Requests), len(f.images.Requests))
	}
	if ctx.Data["saved"] != 0 {
		t.Errorf("second run saved %v words", ctx.Data["saved"])
	}
}

func TestGeneratePhase_AudioFailureStopsPhase(t *testing.T) {
	f := newGenerateFixture(t)
	f.speech.Fail["котка"] = errors.New("quota exceeded")
	ctx := f.context(t)

	results, err := newPipeline(t, nil).ExecutePhase("generate", ctx)
	if err != nil {
		t.Fatalf("ExecutePhase() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[1].Status != pipeline.StatusPartial {
		t.Errorf("audio status = %v, want partial", results[1].Status)
	}
	if len(ctx.Errors) != 1 || !strings.Contains(ctx.Errors[0], "quota exceeded") {
		t.Errorf("ctx.Errors = %v", ctx.Errors)
	}

	// The word that got its audio is stored despite the partial stage
	words := wordsByBulgarian(t, f.store)
	if got := words["ябълка"].AudioFile; got != "media/1_apple/ябълка.mp3" {
		t.Errorf("stored audio_file for ябълка = %q", got)
	}
	if got := words["котка"].AudioFile; got != "" {
		t.Errorf("stored audio_file for котка = %q, want none", got)
	}

	result, err := newPipeline(t, nil).ExecuteStage(StageSave, ctx)
	if err != nil {
		t.Fatalf("ExecuteStage() error = %v", err)
	}
	if !result.OK() || result.Data["saved"] != 0 {
		t.Errorf("save = %v %v", result.Status, result.Data)
	}

	// Once the provider recovers only the missing word is requested again
	delete(f.speech.Fail, "котка")
	f.speech.Requests = nil
	ctx = f.context(t)
	if _, err := newPipeline(t, nil).ExecutePhase("generate", ctx); err != nil {
		t.Fatalf("ExecutePhase() error = %v", err)
	}
	var spoken []string
	for _, req := range f.speech.Requests {
		if req.Kind == provider.KindSpeech {
			spoken = append(spoken, req.Content)
		}
	}
	if diff := cmp.Diff([]string{"котка"}, spoken); diff != "" {
		t.Errorf("speech requests mismatch (-want +got):\n%s", diff)
	}
}

func TestAudioStage_AdoptsExistingFile(t *testing.T) {
	f := newGenerateFixture(t)
	testutil.CreateTestFile(t, filepath.Join(f.root, "media", "1_apple", "ябълка.mp3"), []byte("mp3"))
	ctx := f.context(t)
	p := newPipeline(t, nil)

	for _, stage := range []string{StageLoad, StageAudio} {
		if result, err := p.ExecuteStage(stage, ctx); err != nil || !result.OK() {
			t.Fatalf("%s: %v %v", stage, err, result.Errors)
		}
	}
	if len(f.speech.Requests) != 1 || f.speech.Requests[0].Content != "котка" {
		t.Errorf("speech requests = %+v, want only котка", f.speech.Requests)
	}

	result, err := p.ExecuteStage(StageSave, ctx)
	if err != nil || !result.OK() {
		t.Fatalf("save: %v %v", err, result.Errors)
	}
	if result.Data["saved"] != 1 {
		t.Errorf("saved = %v, want the adopted word", result.Data["saved"])
	}
	if got := wordsByBulgarian(t, f.store)["ябълка"].AudioFile; got != "media/1_apple/ябълка.mp3" {
		t.Errorf("adopted audio_file = %q", got)
	}
}

func TestAudioStage_ForceFromConfig(t *testing.T) {
	f := newGenerateFixture(t)
	testutil.CreateTestFile(t, filepath.Join(f.root, "media", "1_apple", "ябълка.mp3"), []byte("mp3"))
	ctx := f.context(t)
	// YAML decodes `force: true` as a bool
	ctx.Config = map[string]any{"force": true}
	p := newPipeline(t, nil)

	for _, stage := range []string{StageLoad, StageAudio} {
		if result, err := p.ExecuteStage(stage, ctx); err != nil || !result.OK() {
			t.Fatalf("%s: %v %v", stage, err, result.Errors)
		}
	}
	if len(f.speech.Requests) != 2 {
		t.Errorf("got %d speech requests, want both words regenerated", len(f.speech.Requests))
	}
}

func TestMediaStages_RequireLoad(t *testing.T) {
	f := newGenerateFixture(t)
	p := newPipeline(t, nil)

	for _, stage := range []string{StageAudio, StagePhonetics, StageImages, StageSave, StageSync} {
		ctx := f.context(t)
		result, err := p.ExecuteStage(stage, ctx)
		if err != nil {
			t.Fatalf("ExecuteStage(%s) error = %v", stage, err)
		}
		if result.Status != pipeline.StatusFailure {
			t.Errorf("%s ran without load: %v", stage, result.Status)
		}
	}
	if len(f.speech.Requests) != 0 {
		t.Error("provider called although validation failed")
	}
}

func TestAudioStage_Options(t *testing.T) {
	f := newGenerateFixture(t)
	ctx := f.context(t)
	other := testutil.NewMockMediaProvider("espeak")
	ctx.Providers.Audio["espeak"] = other
	ctx.Args["audio_provider"] = "openai"
	ctx.Args["voice"] = "nova"
	ctx.Config["audio_format"] = "wav"
	ctx.Config["media_dir"] = "out/media"

	p := newPipeline(t, nil)
	for _, stage := range []string{StageLoad, StageAudio} {
		if result, err := p.ExecuteStage(stage, ctx); err != nil || !result.OK() {
			t.Fatalf("%s: %v %v", stage, result, err)
		}
	}

	if len(other.Requests) != 0 {
		t.Error("espeak used although openai was requested")
	}
	for _, req := range f.speech.Requests {
		if req.Param("voice", "") != "nova" {
			t.Errorf("voice param missing: %+v", req)
		}
		if !strings.HasPrefix(req.OutputPath, filepath.Join(f.root, "out", "media")) || filepath.Ext(req.OutputPath) != ".wav" {
			t.Errorf("unexpected output path %s", req.OutputPath)
		}
	}
}

func TestSyncStage(t *testing.T) {
	f := newGenerateFixture(t)
	sync := testutil.NewMockSyncProvider("mock")
	ctx := f.context(t)
	ctx.Providers.Sync["mock"] = sync
	ctx.Args["deck"] = "Test Deck"

	results, err := newPipeline(t, nil).ExecutePhase("export", ctx)
	if err != nil {
		t.Fatalf("ExecutePhase() error = %v", err)
	}
	if last := results[len(results)-1]; !last.OK() {
		t.Fatalf("sync: %v %s %v", last.Status, last.Message, last.Errors)
	}

	if diff := cmp.Diff([]string{"TEST", "TEMPLATES", "CARDS Test Deck"}, sync.Calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if len(sync.Templates) != 1 || sync.Templates[0].Name != anki.DefaultTemplate().Name {
		t.Errorf("templates = %+v", sync.Templates)
	}
	cards := sync.Cards["Test Deck"]
	if len(cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(cards))
	}
	if ctx.Data["deck"] != "Test Deck" || ctx.Data["cards_created"] != 2 {
		t.Errorf("data = %v", ctx.Data)
	}
}

func TestSyncStage_Failures(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		f := newGenerateFixture(t)
		sync := testutil.NewMockSyncProvider("mock")
		sync.ConnectionErr = errors.New("connection refused")
		ctx := f.context(t)
		ctx.Providers.Sync["mock"] = sync

		results, _ := newPipeline(t, nil).ExecutePhase("export", ctx)
		if last := results[len(results)-1]; last.Status != pipeline.StatusFailure {
			t.Errorf("status = %v, want failure", last.Status)
		}
		if len(sync.Cards) != 0 {
			t.Error("cards sent to an unreachable target")
		}
	})

	t.Run("card rejected", func(t *testing.T) {
		f := newGenerateFixture(t)
		sync := testutil.NewMockSyncProvider("mock")
		sync.CardErrors["котка"] = errors.New("duplicate")
		ctx := f.context(t)
		ctx.Providers.Sync["mock"] = sync

		results, _ := newPipeline(t, nil).ExecutePhase("export", ctx)
		last := results[len(results)-1]
		if last.Status != pipeline.StatusPartial {
			t.Errorf("status = %v, want partial", last.Status)
		}
		if len(last.Errors) != 1 || !strings.Contains(last.Errors[0], "duplicate") {
			t.Errorf("errors = %v", last.Errors)
		}
	})
}

func TestFullPhase_JSONStoreAndCSV(t *testing.T) {
	root := testutil.CreateProjectDirectory(t)
	testutil.CreateTestFile(t, filepath.Join(root, "words.txt"), []byte("ябълка = apple\nкотка = cat\n"))

	store, err := storage.New(&storage.Config{Root: "data", BaseDir: root, Indent: true})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	csvTarget, err := anki.NewCSVProvider(&anki.CSVConfig{OutputDir: "anki", BaseDir: root, IncludeHeaders: true})
	if err != nil {
		t.Fatalf("NewCSVProvider() error = %v", err)
	}

	ctx := newContext(t, root).WithContext(context.Background())
	ctx.Providers.Data["json"] = store
	ctx.Providers.Audio["openai"] = testutil.NewMockMediaProvider("openai")
	ctx.Providers.Image["openai"] = testutil.NewMockMediaProvider("openai")
	ctx.Providers.Sync["csv"] = csvTarget
	ctx.Args["words"] = "words.txt"
	ctx.Config["deck"] = "Fruit"

	results, err := newPipeline(t, nil).ExecutePhase("full", ctx)
	if err != nil {
		t.Fatalf("ExecutePhase() error = %v", err)
	}
	if len(results) != 7 {
		t.Fatalf("got %d results, want 7: %v", len(results), ctx.Errors)
	}

	ids, err := store.List()
	if err != nil || len(ids) != 2 {
		t.Fatalf("store.List() = %v, %v", ids, err)
	}

	content, err := os.ReadFile(csvTarget.FilePath("Fruit"))
	if err != nil {
		t.Fatalf("CSV not written: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 3 {
		t.Fatalf("CSV has %d lines, want header plus 2", len(lines))
	}
	var bulgarian []string
	for _, line := range lines[1:] {
		bulgarian = append(bulgarian, strings.Split(line, ",")[1])
	}
	sort.Strings(bulgarian)
	if diff := cmp.Diff([]string{"котка", "ябълка"}, bulgarian); diff != "" {
		t.Errorf("CSV words mismatch (-want +got):\n%s", diff)
	}

	media, err := os.ReadDir(filepath.Join(root, "anki", "collection.media"))
	if err != nil || len(media) != 4 {
		t.Errorf("collection.media has %d files (%v), want 4", len(media), err)
	}
}
