// Command slidecast manages narrated-slideshow projects against the slidecast
// backend: editing project settings and segments, generating narration audio,
// and running sequential render batches with a local outcome history.
package main
