// Package services defines the error taxonomy and context carriers shared by
// the pipeline core and its collaborator clients.
//
// Collaborators tag failures with one of the exported sentinel errors so the
// executor can classify them without inspecting messages: ErrTransient marks
// retry-eligible failures, ErrFatal marks permanent ones, and the remaining
// sentinels cover store and validation conditions. Wrap attaches
// stage/operation context while preserving the sentinel for errors.Is.
package services
