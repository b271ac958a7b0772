// Package image finds or generates pictures for vocabulary cards. The
// openai and gemini providers draw an educational illustration from a
// prompt; pixabay and unsplash search a stock photo library and download
// the best match.
package image
