// Package media stores uploaded home photos.
package media

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType is returned for uploads that are not png or jpeg images.
var ErrUnsupportedType = errors.New("only png, jpg and jpeg images are allowed")

// Uploader persists a photo and returns the reference stored on the home.
type Uploader interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	// Remove deletes a photo previously returned by Save. Unknown refs are ignored.
	Remove(ctx context.Context, ref string) error
}

var allowedTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpg":  {},
	"image/jpeg": {},
}

// Allowed reports whether contentType may be uploaded.
func Allowed(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	_, ok := allowedTypes[ct]
	return ok
}

const prefixLetters = "abcdefghijklmnopqrstuvwxyz"

// objectName prefixes the client's file name with 10 random lowercase letters.
func objectName(original string) (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = prefixLetters[int(b)%len(prefixLetters)]
	}
	return string(buf) + "-" + cleanName(original), nil
}

func cleanName(original string) string {
	name := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, name)
	if name == "" || name == "." || name == ".." {
		return "photo"
	}
	return name
}
