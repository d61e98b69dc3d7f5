package models

import "errors"

var (
	// ErrInvalidUpload covers a missing file, an empty filename, an oversized
	// file or a disallowed extension. Extraction never starts.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrUnreadableDocument means a walker could not open or parse a document.
	ErrUnreadableDocument = errors.New("unreadable document")
	// ErrEmptyExtraction means every document parsed but produced no content.
	ErrEmptyExtraction = errors.New("no content extracted from the files")
	// ErrGenerationFailure means the model call itself failed (transport,
	// auth, deadline), as opposed to a reply with nothing usable in it.
	ErrGenerationFailure = errors.New("test case generation failed")
	// ErrNoTestCasesGenerated means the model replied but no line parsed.
	ErrNoTestCasesGenerated = errors.New("no test cases generated")
	ErrArtifactNotFound     = errors.New("artifact not found")
	ErrJobNotFound          = errors.New("job not found")
	ErrDetectorUnavailable  = errors.New("component detector unavailable")
	ErrAsyncDisabled        = errors.New("asynchronous jobs are disabled")
)
