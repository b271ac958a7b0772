// Package provider defines the capability contracts implemented by the
// external services cardforge talks to: data stores, audio and image
// generators, and flashcard sync targets.
package provider
