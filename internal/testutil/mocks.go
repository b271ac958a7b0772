package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"codeberg.org/snonux/cardforge/internal/provider"
)

// MockDataProvider keeps documents in memory
type MockDataProvider struct {
	mu     sync.Mutex
	Docs   map[string]provider.Document
	Errors map[string]error
	Calls  []string
}

var (
	_ provider.DataProvider  = (*MockDataProvider)(nil)
	_ provider.AudioProvider = (*MockMediaProvider)(nil)
	_ provider.ImageProvider = (*MockMediaProvider)(nil)
	_ provider.SyncProvider  = (*MockSyncProvider)(nil)
)

// NewMockDataProvider creates an empty in-memory store
func NewMockDataProvider() *MockDataProvider {
	return &MockDataProvider{Docs: make(map[string]provider.Document), Errors: make(map[string]error)}
}

func (m *MockDataProvider) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// Load mocks reading a document
func (m *MockDataProvider) Load(id string) (provider.Document, error) {
	m.record("LOAD " + id)
	if err, ok := m.Errors[id]; ok {
		return nil, err
	}
	doc, ok := m.Docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrNotFound, id)
	}
	return doc, nil
}

// Save mocks writing a document
func (m *MockDataProvider) Save(id string, doc provider.Document) error {
	m.record("SAVE " + id)
	if err, ok := m.Errors[id]; ok {
		return err
	}
	m.Docs[id] = doc
	return nil
}

// Exists mocks checking a document
func (m *MockDataProvider) Exists(id string) (bool, error) {
	m.record("EXISTS " + id)
	_, ok := m.Docs[id]
	return ok, nil
}

// List returns the stored identifiers sorted
func (m *MockDataProvider) List() ([]string, error) {
	m.record("LIST")
	ids := make([]string, 0, len(m.Docs))
	for id := range m.Docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// MockMediaProvider serves as audio or image provider. Successful requests
// write Data to the request's OutputPath when one is given.
type MockMediaProvider struct {
	ProviderName string
	Data         []byte
	Metadata     map[string]any
	// Fail makes requests for the given content fail
	Fail     map[string]error
	Requests []provider.Request
}

// NewMockMediaProvider creates a provider writing a fake MP3 header
func NewMockMediaProvider(name string) *MockMediaProvider {
	return &MockMediaProvider{
		ProviderName: name,
		Data:         []byte{0xFF, 0xFB, 0x90, 0x00},
		Fail:         make(map[string]error),
	}
}

func (m *MockMediaProvider) Name() string { return m.ProviderName }

// Generate mocks producing one artifact
func (m *MockMediaProvider) Generate(_ context.Context, req provider.Request) provider.Result {
	m.Requests = append(m.Requests, req)

	if err, ok := m.Fail[req.Content]; ok {
		return provider.Failed(err)
	}
	if req.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0755); err != nil {
			return provider.Failed(err)
		}
		if err := os.WriteFile(req.OutputPath, m.Data, 0644); err != nil {
			return provider.Failed(err)
		}
	}
	return provider.Succeeded(req.OutputPath, m.Metadata)
}

// GenerateBatch mocks a batch without delay
func (m *MockMediaProvider) GenerateBatch(ctx context.Context, reqs []provider.Request) []provider.Result {
	return provider.RunBatch(ctx, reqs, 0, m.Generate)
}

// MockSyncProvider records what would be sent to a flashcard application
type MockSyncProvider struct {
	ProviderName  string
	ConnectionErr error
	CardErrors    map[string]error
	Templates     []provider.NoteTemplate
	Media         []provider.MediaFile
	Cards         map[string][]provider.Card
	Calls         []string
}

// NewMockSyncProvider creates a reachable mock sync target
func NewMockSyncProvider(name string) *MockSyncProvider {
	return &MockSyncProvider{
		ProviderName: name,
		CardErrors:   make(map[string]error),
		Cards:        make(map[string][]provider.Card),
	}
}

func (m *MockSyncProvider) Name() string { return m.ProviderName }

func (m *MockSyncProvider) TestConnection(context.Context) error {
	m.Calls = append(m.Calls, "TEST")
	return m.ConnectionErr
}

func (m *MockSyncProvider) SyncTemplates(_ context.Context, templates []provider.NoteTemplate) (provider.SyncReport, error) {
	m.Calls = append(m.Calls, "TEMPLATES")
	m.Templates = append(m.Templates, templates...)
	return provider.SyncReport{Created: len(templates)}, nil
}

func (m *MockSyncProvider) SyncMedia(_ context.Context, files []provider.MediaFile) (provider.SyncReport, error) {
	m.Calls = append(m.Calls, "MEDIA")
	m.Media = append(m.Media, files...)
	return provider.SyncReport{Created: len(files)}, nil
}

func (m *MockSyncProvider) SyncCards(_ context.Context, deck string, cards []provider.Card) (provider.SyncReport, error) {
	m.Calls = append(m.Calls, "CARDS "+deck)

	var report provider.SyncReport
	for _, card := range cards {
		if err, ok := m.CardErrors[card.Bulgarian]; ok {
			report.Failed = append(report.Failed, provider.ItemError{Item: card.Bulgarian, Err: err})
			continue
		}
		m.Cards[deck] = append(m.Cards[deck], card)
		report.Created++
	}
	return report, nil
}

func (m *MockSyncProvider) ListExisting(_ context.Context, deck string) ([]string, error) {
	m.Calls = append(m.Calls, "LIST "+deck)
	var ids []string
	for _, card := range m.Cards[deck] {
		ids = append(ids, card.ID)
	}
	return ids, nil
}

// MockTranslator mocks the translation service
type MockTranslator struct {
	Translations map[string]string
	Reverse      map[string]string
	Errors       map[string]error
	Calls        []string
}

// TranslateToEnglish returns the configured translation or a placeholder
func (m *MockTranslator) TranslateToEnglish(_ context.Context, text string) (string, error) {
	m.Calls = append(m.Calls, "Translate: "+text)

	if err, ok := m.Errors[text]; ok {
		return "", err
	}
	if translation, ok := m.Translations[text]; ok {
		return translation, nil
	}
	return fmt.Sprintf("mock translation of %s", text), nil
}

// TranslateToBulgarian looks the English word up in Reverse
func (m *MockTranslator) TranslateToBulgarian(_ context.Context, text string) (string, error) {
	m.Calls = append(m.Calls, "Reverse: "+text)

	if err, ok := m.Errors[text]; ok {
		return "", err
	}
	if bulgarian, ok := m.Reverse[text]; ok {
		return bulgarian, nil
	}
	return "", fmt.Errorf("no Bulgarian translation for %s", text)
}
