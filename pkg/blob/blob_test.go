package blob

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDataURL(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	contentType, data, err := DecodeDataURL(dataURL)
	require.NoError(t, err)

	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, payload, data)
}

func TestDecodeDataURLRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"not a data url", "https://example.com/pic.png"},
		{"missing comma", "data:image/png;base64"},
		{"unsupported encoding", "data:image/png;utf8,abc"},
		{"bad base64", "data:image/png;base64,!!!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeDataURL(tc.input)
			assert.Error(t, err)
		})
	}
}

func TestTransferErrorNotFound(t *testing.T) {
	err := &TransferError{Op: "url", Path: "profile-pictures/uid-1", Err: ErrNotFound}

	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "profile-pictures/uid-1")
}
