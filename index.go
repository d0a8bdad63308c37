package classpath

import (
	"strings"

	"github.com/jmgilman/go/errors"

	"github.com/jmgilman/go/classpath/classfile"
)

// buildIndex enumerates archive once and returns the class keys it holds,
// mapped to the entry each key is read from. No class bytes are read.
func buildIndex(archive Archive) (map[string]string, error) {
	entries, err := archive.Entries()
	if err != nil {
		return nil, errors.WrapWithContext(err, CodeArchiveUnreadable, "failed to enumerate archive",
			map[string]interface{}{"archive": archive.Name()})
	}

	index := make(map[string]string)
	for _, entry := range entries {
		if key, ok := classKey(entry); ok {
			if _, exists := index[key]; !exists {
				index[key] = entry
			}
		}
	}
	return index, nil
}

// classKey strips the class-file suffix from an entry name. Directory
// entries, non-class files and nameless ".class" files are rejected.
func classKey(entry string) (string, bool) {
	if strings.HasSuffix(entry, "/") {
		return "", false
	}
	key, ok := strings.CutSuffix(entry, classfile.Suffix)
	if !ok || key == "" || strings.HasSuffix(key, "/") {
		return "", false
	}
	return key, true
}
