package chat

import "errors"

// Sentinel errors for the chat core. The HTTP layer maps these to status
// codes with errors.Is(); storage.ErrNotFound passes through for missing
// messages and conversations.
var (
	// ErrAccessDenied indicates the conversation does not exist or is not
	// owned by the calling principal. The two cases are deliberately not
	// distinguished.
	ErrAccessDenied = errors.New("access denied")

	// ErrForbidden indicates the operation targets a message whose role
	// does not permit it (only user messages may be edited).
	ErrForbidden = errors.New("operation not permitted for this message")

	// ErrNotLast indicates an edit targeted a message that is not the most
	// recent one in its conversation.
	ErrNotLast = errors.New("only the latest message can be edited")

	// ErrInvalidMessage indicates the referenced message does not belong to
	// the given conversation.
	ErrInvalidMessage = errors.New("message does not belong to conversation")

	// ErrCancelled indicates a generation was stopped by the client. It is
	// internal to the coordinator; the orchestrator surfaces ErrAborted.
	ErrCancelled = errors.New("generation cancelled")

	// ErrAborted indicates the send was stopped by the client. Not a
	// failure: the caller maps it to an empty success response.
	ErrAborted = errors.New("generation aborted")

	// ErrGenerationFailed indicates the backend failed to produce a reply.
	// The internal cause is logged, never surfaced.
	ErrGenerationFailed = errors.New("generation failed")
)
