package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"codeberg.org/snonux/cardforge/internal"
	"codeberg.org/snonux/cardforge/internal/provider"
	"codeberg.org/snonux/cardforge/internal/retry"
)

// ConnectConfig holds the settings of the AnkiConnect sync target
type ConnectConfig struct {
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	TagPrefix string        `mapstructure:"tag_prefix"`
}

// ConnectSchema validates the settings of the AnkiConnect sync target
const ConnectSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "pattern": "^https?://"},
    "api_key": {"type": "string"},
    "timeout": {"type": ["string", "integer"]},
    "tag_prefix": {"type": "string", "pattern": "^[^\\s]+$"}
  }
}`

// ankiConnectVersion is the API version requests are sent with
const ankiConnectVersion = 6

// ConnectProvider talks to a running Anki through the AnkiConnect add-on.
// Cards carry a "<tag_prefix>::<card id>" tag so they can be found again.
type ConnectProvider struct {
	config  *ConnectConfig
	client  *http.Client
	breaker *retry.Breaker
}

var _ provider.SyncProvider = (*ConnectProvider)(nil)

// NewConnectProvider creates an AnkiConnect client
func NewConnectProvider(config *ConnectConfig) (*ConnectProvider, error) {
	if config == nil {
		config = &ConnectConfig{}
	}
	if config.URL == "" {
		config.URL = "http://127.0.0.1:8765"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.TagPrefix == "" {
		config.TagPrefix = "cardforge"
	}
	if provider.Unresolved(config.APIKey) {
		config.APIKey = ""
	}

	return &ConnectProvider{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		breaker: retry.NewBreaker("ankiconnect", retry.DefaultPolicy()),
	}, nil
}

// NewConnectFromSettings creates the provider from registry settings
func NewConnectFromSettings(settings map[string]any) (*ConnectProvider, error) {
	config := &ConnectConfig{}
	if err := provider.DecodeSettings(settings, config); err != nil {
		return nil, err
	}
	return NewConnectProvider(config)
}

func (p *ConnectProvider) Name() string {
	return "ankiconnect"
}

type connectRequest struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Key     string `json:"key,omitempty"`
	Params  any    `json:"params,omitempty"`
}

type connectResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// ActionError is an error reported by AnkiConnect itself
type ActionError struct {
	Action  string
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("ankiconnect %s: %s", e.Action, e.Message)
}

// invoke runs one action and decodes its result into out
func (p *ConnectProvider) invoke(ctx context.Context, action string, params, out any) error {
	body, err := json.Marshal(connectRequest{Action: action, Version: ankiConnectVersion, Key: p.config.APIKey, Params: params})
	if err != nil {
		return err
	}

	return p.breaker.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.URL, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("ankiconnect %s: %w", action, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &retry.StatusError{Service: "ankiconnect", Code: resp.StatusCode, Body: string(msg)}
		}

		var envelope connectResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return retry.Permanent(fmt.Errorf("ankiconnect %s: invalid response: %w", action, err))
		}
		if envelope.Error != nil {
			return retry.Permanent(&ActionError{Action: action, Message: *envelope.Error})
		}
		if out == nil || len(envelope.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return retry.Permanent(fmt.Errorf("ankiconnect %s: unexpected result: %w", action, err))
		}
		return nil
	})
}

// TestConnection asks for the API version
func (p *ConnectProvider) TestConnection(ctx context.Context) error {
	var version int
	if err := p.invoke(ctx, "version", nil, &version); err != nil {
		return fmt.Errorf("Anki is not reachable at %s: %w", p.config.URL, err)
	}
	if version < ankiConnectVersion {
		return fmt.Errorf("AnkiConnect API version %d is too old, need %d", version, ankiConnectVersion)
	}
	return nil
}

// SyncTemplates creates missing note types and updates the templates and
// styling of existing ones
func (p *ConnectProvider) SyncTemplates(ctx context.Context, templates []provider.NoteTemplate) (provider.SyncReport, error) {
	var report provider.SyncReport

	var names []string
	if err := p.invoke(ctx, "modelNames", nil, &names); err != nil {
		return report, err
	}
	existing := make(map[string]bool, len(names))
	for _, name := range names {
		existing[name] = true
	}

	for _, tmpl := range templates {
		cardTemplates := []map[string]string{
			{"Name": "Forward", "Front": tmpl.Front, "Back": tmpl.Back},
			{"Name": "Reverse", "Front": reverseFrontTemplate, "Back": reverseBackTemplate},
		}

		var err error
		if existing[tmpl.Name] {
			err = p.invoke(ctx, "updateModelTemplates", map[string]any{
				"model": map[string]any{
					"name": tmpl.Name,
					"templates": map[string]any{
						"Forward": map[string]string{"Front": tmpl.Front, "Back": tmpl.Back},
						"Reverse": map[string]string{"Front": reverseFrontTemplate, "Back": reverseBackTemplate},
					},
				},
			}, nil)
			if err == nil {
				err = p.invoke(ctx, "updateModelStyling", map[string]any{
					"model": map[string]any{"name": tmpl.Name, "css": tmpl.CSS},
				}, nil)
			}
			if err == nil {
				report.Updated++
			}
		} else {
			err = p.invoke(ctx, "createModel", map[string]any{
				"modelName":     tmpl.Name,
				"inOrderFields": tmpl.Fields,
				"css":           tmpl.CSS,
				"cardTemplates": cardTemplates,
			}, nil)
			if err == nil {
				report.Created++
			}
		}
		if err != nil {
			if !isPermanent(err) {
				return report, err
			}
			report.Failed = append(report.Failed, provider.ItemError{Item: tmpl.Name, Err: err})
		}
	}
	return report, nil
}

// SyncMedia stores files in Anki's media folder. AnkiConnect replaces a
// file with the same name.
func (p *ConnectProvider) SyncMedia(ctx context.Context, files []provider.MediaFile) (provider.SyncReport, error) {
	var report provider.SyncReport
	for _, file := range files {
		path, err := filepath.Abs(file.Path)
		if err != nil || !fileExists(path) {
			report.Failed = append(report.Failed, provider.ItemError{Item: file.Name, Err: fmt.Errorf("missing media file %s", file.Path)})
			continue
		}
		if err := p.invoke(ctx, "storeMediaFile", map[string]any{"filename": file.Name, "path": path}, nil); err != nil {
			if !isPermanent(err) {
				return report, err
			}
			report.Failed = append(report.Failed, provider.ItemError{Item: file.Name, Err: err})
			continue
		}
		report.Created++
	}
	return report, nil
}

type connectNote struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags"`
	Options   map[string]any    `json:"options"`
}

// SyncCards adds cards not yet in the deck. Cards already present are
// skipped; their media is still uploaded.
func (p *ConnectProvider) SyncCards(ctx context.Context, deck string, cards []provider.Card) (provider.SyncReport, error) {
	var report provider.SyncReport
	if strings.TrimSpace(deck) == "" {
		return report, fmt.Errorf("ankiconnect: deck name is required")
	}

	if err := p.invoke(ctx, "createDeck", map[string]any{"deck": deck}, nil); err != nil {
		return report, err
	}
	existing, err := p.ListExisting(ctx, deck)
	if err != nil {
		return report, err
	}
	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}

	tmpl := DefaultTemplate()
	var notes []connectNote
	var pending []provider.Card
	var media []provider.MediaFile
	for _, card := range cards {
		if card.ID == "" {
			card.ID = internal.GenerateCardID(card.Bulgarian)
		}
		if known[card.ID] {
			report.Skipped++
			continue
		}

		rendered := renderNote(card)
		fields := make(map[string]string, len(tmpl.Fields))
		for i, name := range tmpl.Fields {
			fields[name] = rendered.fields[i]
		}
		notes = append(notes, connectNote{
			DeckName:  deck,
			ModelName: tmpl.Name,
			Fields:    fields,
			Tags:      append([]string{p.idTag(card.ID)}, card.Tags...),
			Options:   map[string]any{"allowDuplicate": false, "duplicateScope": "deck"},
		})
		pending = append(pending, card)
		media = append(media, rendered.media...)
	}
	if len(notes) == 0 {
		return report, nil
	}

	mediaReport, err := p.SyncMedia(ctx, media)
	if err != nil {
		return report, err
	}
	report.Failed = append(report.Failed, mediaReport.Failed...)

	// addNotes returns null in place of every note it could not add
	var ids []*int64
	if err := p.invoke(ctx, "addNotes", map[string]any{"notes": notes}, &ids); err != nil {
		return report, err
	}
	for i, card := range pending {
		if i < len(ids) && ids[i] != nil {
			report.Created++
			continue
		}
		report.Failed = append(report.Failed, provider.ItemError{Item: card.Bulgarian, Err: errors.New("note was rejected by Anki (duplicate or empty first field)")})
	}
	return report, nil
}

// ListExisting returns the card IDs tagged in the deck
func (p *ConnectProvider) ListExisting(ctx context.Context, deck string) ([]string, error) {
	var noteIDs []int64
	query := fmt.Sprintf(`"deck:%s" "tag:%s::*"`, deck, p.config.TagPrefix)
	if err := p.invoke(ctx, "findNotes", map[string]any{"query": query}, &noteIDs); err != nil {
		return nil, err
	}
	if len(noteIDs) == 0 {
		return nil, nil
	}

	var infos []struct {
		Tags []string `json:"tags"`
	}
	if err := p.invoke(ctx, "notesInfo", map[string]any{"notes": noteIDs}, &infos); err != nil {
		return nil, err
	}

	prefix := p.config.TagPrefix + "::"
	var ids []string
	for _, info := range infos {
		for _, tag := range info.Tags {
			if id, ok := strings.CutPrefix(tag, prefix); ok {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *ConnectProvider) idTag(id string) string {
	return p.config.TagPrefix + "::" + id
}

func isPermanent(err error) bool {
	var actionErr *ActionError
	return errors.As(err, &actionErr)
}
