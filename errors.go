package classpath

import (
	"github.com/jmgilman/go/errors"

	"github.com/jmgilman/go/classpath/classfile"
)

// Error codes specific to class resolution.
const (
	// CodeArchiveUnreadable indicates an archive or class directory could not
	// be opened or enumerated. It is fatal to resolver construction.
	CodeArchiveUnreadable errors.ErrorCode = "ARCHIVE_UNREADABLE"

	// CodeClassReadFailed indicates the bytes of a known class could not be
	// read.
	CodeClassReadFailed errors.ErrorCode = "CLASS_READ_FAILED"

	// CodeClassParseFailed indicates the bytes of a known class were
	// rejected by the parser.
	CodeClassParseFailed = classfile.CodeParseFailed
)
