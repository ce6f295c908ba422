package storage

import (
	"net/url"
	"strconv"
	"strings"
)

// FolderPrefix returns the listing prefix for a candidate folder.
func FolderPrefix(folder string) string {
	return strings.TrimSuffix(folder, "/") + "/"
}

// ObjectKey joins a folder and a file name.
func ObjectKey(folder, name string) string {
	return FolderPrefix(folder) + name
}

// FileName returns the part of key after its folder.
func FileName(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}

// CandidateID parses the employee ID folder of a key like "42/resume.pdf".
// Keys without a file part, or whose folder isn't numeric, don't match.
func CandidateID(key string) (uint64, bool) {
	folder, file, ok := strings.Cut(key, "/")
	if !ok || file == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(folder, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// DecodeKey reverses the url encoding of listed keys, where a plus is
// a space.
func DecodeKey(key string) string {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return strings.ReplaceAll(key, "+", " ")
	}
	return decoded
}
