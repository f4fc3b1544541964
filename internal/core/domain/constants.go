package domain

import "errors"

var (
	ErrSendingReplyFailed = errors.New("failed to send reply")
	ErrEmptyPrompt        = errors.New("empty prompt")
	ErrMissingCredential  = errors.New("missing primary backend credential")
	ErrPrimaryBackend     = errors.New("primary backend error")
)

// EmptyReplySentinel replaces a reply that is still empty after generation.
const EmptyReplySentinel = "404"

const DefaultHotwords = "سوسي,يا سوسي"
