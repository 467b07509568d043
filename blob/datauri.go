// Package blob stores decoded chat images and avatars in S3-compatible
// object storage and hands back public URLs.
package blob

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"parley/errors"
)

// Size caps, enforced on the decoded bytes.
const (
	MaxAvatarBytes    = 2 << 20 // 2 MB
	MaxChatImageBytes = 5 << 20 // 5 MB
)

var allowedExtensions = map[string]struct{}{
	"jpeg": {},
	"jpg":  {},
	"png":  {},
	"gif":  {},
	"webp": {},
}

// ParseImageDataURI decodes a `data:image/<ext>;base64,<data>` payload.
// The declared extension must be on the allow-list, the decoded bytes
// must fit maxBytes, and the sniffed content type must agree that the
// bytes really are an image (a renamed executable doesn't get through
// on its file extension).
func ParseImageDataURI(uri string, maxBytes int) (ext string, data []byte, err error) {
	const scheme = "data:image/"
	if !strings.HasPrefix(uri, scheme) {
		return "", nil, fmt.Errorf("%w: not an image data URI", errors.ErrBlobFormat)
	}
	rest := uri[len(scheme):]

	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", nil, fmt.Errorf("%w: missing base64 marker", errors.ErrBlobFormat)
	}
	ext = strings.ToLower(rest[:sep])
	if _, ok := allowedExtensions[ext]; !ok {
		return "", nil, fmt.Errorf("%w: extension %q", errors.ErrBlobFormat, ext)
	}

	encoded := rest[sep+len(";base64,"):]
	// Cheap upper-bound check before decoding: base64 inflates by 4/3.
	if len(encoded) > maxBytes*4/3+4 {
		return "", nil, errors.ErrBlobTooLarge
	}
	data, err = base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errors.ErrBlobFormat, err)
	}
	if len(data) > maxBytes {
		return "", nil, errors.ErrBlobTooLarge
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "", nil, fmt.Errorf("%w: content sniffed as %s", errors.ErrBlobFormat, detected)
	}
	return ext, data, nil
}

// ParseAvatar and ParseChatImage apply the respective size caps.
func ParseAvatar(uri string) (string, []byte, error) {
	return ParseImageDataURI(uri, MaxAvatarBytes)
}

func ParseChatImage(uri string) (string, []byte, error) {
	return ParseImageDataURI(uri, MaxChatImageBytes)
}
