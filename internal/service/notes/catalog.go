// Package notes orchestrates note generation from audio recordings and from
// free text.
package notes

import (
	"slices"

	apperrors "clinical-notes-service/internal/errors"
)

// User types.
const (
	UserTherapist = "Therapist"
	UserCounselor = "Counselor"
	UserPatient   = "Patient"
)

// Note types.
const (
	NoteSession  = "Session Note"
	NoteProgress = "Progress Note"
	NoteClient   = "Client Note"
)

// NoteTypes lists the note types each user type may request.
var NoteTypes = map[string][]string{
	UserTherapist: {NoteSession, NoteProgress},
	UserCounselor: {NoteSession, NoteProgress},
	UserPatient:   {NoteClient},
}

// ValidateNoteType checks the user type / note type combination.
func ValidateNoteType(userType, noteType string) error {
	allowed, ok := NoteTypes[userType]
	if !ok {
		return apperrors.ClientInput(apperrors.CodeInvalidUserType, "Invalid user_type").
			WithDetail("user_type", userType)
	}
	if !slices.Contains(allowed, noteType) {
		return apperrors.ClientInput(apperrors.CodeInvalidNoteType, "Invalid note_type for given user_type").
			WithDetail("user_type", userType).
			WithDetail("allowed", allowed)
	}
	return nil
}
