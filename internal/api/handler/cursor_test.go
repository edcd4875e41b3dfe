package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvtb/songvault-be/internal/api/storage"
)

func TestDownloadCursorRoundTrip(t *testing.T) {
	cursor := &storage.DownloadCursor{
		CreatedAt:  time.Unix(0, 1724932800123456789),
		DownloadID: "abc",
	}

	encoded, err := EncodeDownloadCursor(cursor)
	require.NoError(t, err)

	decoded, err := DecodeDownloadCursor(encoded)
	require.NoError(t, err)
	assert.True(t, cursor.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, cursor.DownloadID, decoded.DownloadID)
}

func TestDecodeDownloadCursor_Invalid(t *testing.T) {
	_, err := DecodeDownloadCursor("not-base64!!")
	assert.Error(t, err)

	garbled := base64.StdEncoding.EncodeToString([]byte("no-separator"))
	_, err = DecodeDownloadCursor(garbled)
	assert.Error(t, err)
}

func TestDecodeDownloadCursor_Empty(t *testing.T) {
	cursor, err := DecodeDownloadCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}
