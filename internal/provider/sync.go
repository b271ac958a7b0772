package provider

import "context"

// Card is one flashcard as sent to a sync target
type Card struct {
	ID          string
	Bulgarian   string
	Translation string
	Phonetic    string
	Notes       string
	AudioFile   string
	ImageFile   string
	Tags        []string
}

// NoteTemplate describes the note type cards are created with
type NoteTemplate struct {
	Name   string
	Fields []string
	Front  string
	Back   string
	CSS    string
}

// MediaFile is a local file referenced by cards
type MediaFile struct {
	Name string
	Path string
}

// ItemError records one item a sync step could not handle
type ItemError struct {
	Item string
	Err  error
}

// SyncReport summarises one sync step
type SyncReport struct {
	Created int
	Updated int
	Skipped int
	Failed  []ItemError
}

// OK reports whether no item failed
func (r SyncReport) OK() bool {
	return len(r.Failed) == 0
}

// SyncProvider pushes cards to a flashcard application
type SyncProvider interface {
	Name() string
	TestConnection(ctx context.Context) error
	SyncTemplates(ctx context.Context, templates []NoteTemplate) (SyncReport, error)
	SyncMedia(ctx context.Context, files []MediaFile) (SyncReport, error)
	SyncCards(ctx context.Context, deck string, cards []Card) (SyncReport, error)
	ListExisting(ctx context.Context, deck string) ([]string, error)
}
