package notify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoshard-pipeline/internal/model"
)

func TestFileOutbox_Deliver(t *testing.T) {
	dir := t.TempDir()
	outbox, err := NewFileOutbox(dir)
	require.NoError(t, err)

	err = outbox.Deliver(context.Background(), model.Notification{
		Subject:   "Geoshard Processing Complete: city-parks",
		Message:   "all done",
		DatasetID: "city-parks",
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "city-parks-"))

	body, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "Geoshard Processing Complete: city-parks\n\nall done\n", string(body))
}

func TestFileOutbox_SanitizesDatasetID(t *testing.T) {
	dir := t.TempDir()
	outbox, err := NewFileOutbox(dir)
	require.NoError(t, err)

	require.NoError(t, outbox.Deliver(context.Background(), model.Notification{
		Subject:   "s",
		Message:   "m",
		DatasetID: "weird/../id",
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "weird____id-"))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "unknown"},
		{"city-parks", "city-parks"},
		{"a b/c", "a_b_c"},
		{"Data_Set-42", "Data_Set-42"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitize(tt.in))
	}
}
