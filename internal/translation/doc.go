// Package translation turns Bulgarian words into English with an OpenAI
// chat model. Translations are cached in memory for the lifetime of a
// Translator so a batch asks for each word once.
package translation
