// Package pipeline is the composition root for local plate recognition.
//
// A frame is validated, turned into each preprocessing variant, read by the
// recognizer, and the candidates ranked. The winning text is normalised into a
// canonical registration. preprocess, recognize and normalize know nothing
// about each other; only this package imports all three.
package pipeline
