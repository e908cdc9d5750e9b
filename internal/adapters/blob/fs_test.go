package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
)

func TestFSStoreRoundTrip(t *testing.T) {
	store := MustNewFSStore(t.TempDir())
	ctx := context.Background()

	ref, err := store.Put(ctx, "results/job-1.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "results/job-1.pdf", ref)

	data, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)
}

func TestFSStoreOverwrite(t *testing.T) {
	store := MustNewFSStore(t.TempDir())
	ctx := context.Background()

	_, err := store.Put(ctx, "results/job-1.pdf", []byte("first"))
	require.NoError(t, err)
	_, err = store.Put(ctx, "results/job-1.pdf", []byte("second"))
	require.NoError(t, err)

	data, err := store.Get(ctx, "results/job-1.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestFSStoreMissingBlob(t *testing.T) {
	store := MustNewFSStore(t.TempDir())

	_, err := store.Get(context.Background(), "results/nope.pdf")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestFSStoreRejectsEscapingKeys(t *testing.T) {
	store := MustNewFSStore(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"../outside", "/etc/passwd", "a/../../b", "."} {
		_, err := store.Put(ctx, key, []byte("x"))
		assert.Error(t, err, "key %q", key)
		assert.True(t, apperrors.IsValidation(err), "key %q", key)
	}
}
