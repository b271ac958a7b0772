// Package anki exports vocabulary cards to Anki. Three sync targets are
// offered: an .apkg package file built on SQLite, a running Anki desktop
// reached through the AnkiConnect add-on, and a CSV file for Anki's text
// importer.
package anki
