package blob

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"parley/errors"
)

// A valid 1x1 transparent PNG.
const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func TestParseImageDataURI_Valid(t *testing.T) {
	req := require.New(t)
	ext, data, err := ParseImageDataURI("data:image/png;base64,"+tinyPNG, MaxAvatarBytes)
	req.NoError(err)
	req.Equal("png", ext)
	req.NotEmpty(data)
}

func TestParseImageDataURI_Rejects_Bad_Scheme(t *testing.T) {
	req := require.New(t)
	cases := []string{
		"http://example.com/cat.png",
		"data:text/plain;base64," + tinyPNG,
		"data:image/png," + tinyPNG, // missing base64 marker
	}
	for _, uri := range cases {
		_, _, err := ParseImageDataURI(uri, MaxAvatarBytes)
		req.ErrorIsf(err, errors.ErrBlobFormat, "uri: %s", uri)
	}
}

func TestParseImageDataURI_Extension_Allowlist(t *testing.T) {
	req := require.New(t)
	for _, ext := range []string{"jpeg", "jpg", "png", "gif", "webp"} {
		// The extension check happens before content sniffing, so a
		// PNG body behind any allowed extension gets past this gate.
		_, _, err := ParseImageDataURI(fmt.Sprintf("data:image/%s;base64,%s", ext, tinyPNG), MaxAvatarBytes)
		req.NoErrorf(err, "extension %s should be allowed", ext)
	}
	for _, ext := range []string{"svg", "bmp", "tiff", "exe", ""} {
		_, _, err := ParseImageDataURI(fmt.Sprintf("data:image/%s;base64,%s", ext, tinyPNG), MaxAvatarBytes)
		req.ErrorIsf(err, errors.ErrBlobFormat, "extension %q should be rejected", ext)
	}
}

func TestParseImageDataURI_Size_Cap(t *testing.T) {
	req := require.New(t)
	// Valid base64, but way over a tiny cap.
	big := base64.StdEncoding.EncodeToString(make([]byte, 1024))
	_, _, err := ParseImageDataURI("data:image/png;base64,"+big, 512)
	req.ErrorIs(err, errors.ErrBlobTooLarge)
}

func TestParseImageDataURI_Sniffs_Content(t *testing.T) {
	req := require.New(t)
	// Plain text dressed up as a PNG must not get through.
	fake := base64.StdEncoding.EncodeToString([]byte("#!/bin/sh\nrm -rf /\n"))
	_, _, err := ParseImageDataURI("data:image/png;base64,"+fake, MaxAvatarBytes)
	req.ErrorIs(err, errors.ErrBlobFormat)
	req.True(strings.Contains(err.Error(), "sniffed"))
}

func TestParseImageDataURI_Bad_Base64(t *testing.T) {
	_, _, err := ParseImageDataURI("data:image/png;base64,!!!not-base64!!!", MaxAvatarBytes)
	require.ErrorIs(t, err, errors.ErrBlobFormat)
}
