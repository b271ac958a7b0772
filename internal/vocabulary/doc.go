// Package vocabulary is the bundled pipeline that turns a word list into
// Anki flashcards.
//
// Words are stored one document per card in the data providers visible
// to the pipeline. The stages are:
//
//	import     read a word list and store new words
//	load       read all stored words into the run
//	audio      generate speech for words without audio
//	phonetics  fetch IPA pronunciation for words without one
//	images     generate or find a picture for words without one
//	save       write changed words back
//	sync       push the words to a flashcard application
//
// The prepare, generate, export and full phases chain them.
package vocabulary
