package resolver_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tailorhq/resume-tailor-api/internal/adapters/resolver"
	"github.com/tailorhq/resume-tailor-api/internal/domain/model"
	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
	"github.com/tailorhq/resume-tailor-api/internal/mocks"
	"github.com/tailorhq/resume-tailor-api/internal/pipeline"
)

func newResolver(t *testing.T) (*resolver.CacheResolver, *mocks.MockCacheRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCacheRepository(ctrl)
	r := resolver.MustNewCacheResolver(resolver.CacheResolverOptions{Cache: cache})
	return r, cache
}

func strPtr(s string) *string { return &s }

func TestResolveUploadWins(t *testing.T) {
	r, _ := newResolver(t)

	source, err := r.Resolve(context.Background(), strPtr("user-1"), &model.TailorResumePayload{
		JobDescription: "desc",
		Upload:         &model.UploadedDocument{FileName: "cv.txt", Content: "raw text"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cv.txt", source.FileName)
	assert.Equal(t, "raw text", source.RawText)
	assert.Nil(t, source.Structured)
}

func TestResolveExplicitReference(t *testing.T) {
	r, cache := newResolver(t)

	stored, err := json.Marshal(pipeline.ResumeContent{FullName: "Jordan Smith"})
	require.NoError(t, err)
	cache.EXPECT().
		Get(gomock.Any(), "resume:extracted:ref-1").
		Return(stored, nil)

	source, err := r.Resolve(context.Background(), nil, &model.TailorResumePayload{
		JobDescription: "desc",
		ResumeRef:      strPtr("ref-1"),
	})
	require.NoError(t, err)
	require.NotNil(t, source.Structured)
	assert.Equal(t, "Jordan Smith", source.Structured.FullName)
}

func TestResolveExpiredReference(t *testing.T) {
	r, cache := newResolver(t)

	cache.EXPECT().
		Get(gomock.Any(), "resume:extracted:ref-gone").
		Return(nil, nil)

	_, err := r.Resolve(context.Background(), nil, &model.TailorResumePayload{
		JobDescription: "desc",
		ResumeRef:      strPtr("ref-gone"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsMissingInput(err))
}

func TestResolveLatestExtractionForUser(t *testing.T) {
	r, cache := newResolver(t)

	stored, err := json.Marshal(pipeline.ResumeContent{FullName: "Jordan Smith"})
	require.NoError(t, err)
	cache.EXPECT().
		Get(gomock.Any(), "resume:extracted:latest:user-1").
		Return([]byte("ref-1"), nil)
	cache.EXPECT().
		Get(gomock.Any(), "resume:extracted:ref-1").
		Return(stored, nil)

	source, err := r.Resolve(context.Background(), strPtr("user-1"), &model.TailorResumePayload{
		JobDescription: "desc",
	})
	require.NoError(t, err)
	require.NotNil(t, source.Structured)
	assert.Equal(t, "Jordan Smith", source.Structured.FullName)
}

func TestResolveFreshUserHasNothing(t *testing.T) {
	r, cache := newResolver(t)

	cache.EXPECT().
		Get(gomock.Any(), "resume:extracted:latest:user-2").
		Return(nil, nil)

	_, err := r.Resolve(context.Background(), strPtr("user-2"), &model.TailorResumePayload{
		JobDescription: "desc",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsMissingInput(err))
	assert.Contains(t, err.Error(), "upload")
}

func TestResolveGuestWithoutUpload(t *testing.T) {
	r, _ := newResolver(t)

	_, err := r.Resolve(context.Background(), nil, &model.TailorResumePayload{
		JobDescription: "desc",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsMissingInput(err))
}

func TestStoreExtraction(t *testing.T) {
	r, cache := newResolver(t)

	var storedRef string
	cache.EXPECT().
		Set(gomock.Any(), gomock.Any(), gomock.Any(), resolver.DefaultExtractionTTL).
		DoAndReturn(func(_ context.Context, key string, value []byte, _ time.Duration) error {
			storedRef = key
			var content pipeline.ResumeContent
			require.NoError(t, json.Unmarshal(value, &content))
			assert.Equal(t, "Jordan Smith", content.FullName)
			return nil
		})
	cache.EXPECT().
		Set(gomock.Any(), "resume:extracted:latest:user-1", gomock.Any(), resolver.DefaultExtractionTTL).
		Return(nil)

	ref, err := r.StoreExtraction(context.Background(), strPtr("user-1"),
		&pipeline.ResumeContent{FullName: "Jordan Smith"})
	require.NoError(t, err)
	assert.Equal(t, "resume:extracted:"+ref, storedRef)
}
