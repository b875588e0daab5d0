// Package services implements the business logic of the giveaway bot:
// webhook intake, the per-user participation workflow, durable outbound
// delivery with retry, and bulk winner/loser dispatch. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
package services

import "errors"

var (
	// ErrCollaboratorUnavailable wraps a failed call to a sibling service
	// on the interactive path. The operation is abandoned, never retried.
	ErrCollaboratorUnavailable = errors.New("collaborator service unavailable")

	// ErrUnknownMessageKind is returned by the intake dispatcher for an
	// inbound payload variant outside the recognized set.
	ErrUnknownMessageKind = errors.New("unknown message kind")

	// ErrEmptyRecipients is returned when a broadcast is requested with no
	// recipients.
	ErrEmptyRecipients = errors.New("recipient list is empty")
)
