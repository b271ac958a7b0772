package provider

import "errors"

// ErrNotFound is returned by Load for an identifier with no stored document
var ErrNotFound = errors.New("document not found")

// Document is one stored data file, decoded from JSON
type Document map[string]any

// DataProvider loads and stores documents by identifier
type DataProvider interface {
	Load(id string) (Document, error)
	Save(id string, doc Document) error
	Exists(id string) (bool, error)
	List() ([]string, error)
}

// Backuper is implemented by data providers that can snapshot a document
type Backuper interface {
	// Backup copies the document and returns the backup location
	Backup(id string) (string, error)
}
