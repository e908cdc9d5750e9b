package core_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tailorhq/resume-tailor-api/internal/core"
	"github.com/tailorhq/resume-tailor-api/internal/mocks"
)

func writeTemplate(t *testing.T, dir, id, html string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".html"), []byte(html), 0o600))
}

func TestTemplateCacheService_TemplateHTML(t *testing.T) {
	t.Parallel()

	t.Run("cache hit skips disk", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		cache := mocks.NewMockCacheRepository(ctrl)
		cache.EXPECT().
			Get(gomock.Any(), "template:html:modern").
			Return([]byte("<html>cached</html>"), nil)

		svc := core.NewTemplateCacheService(core.TemplateCacheServiceOptions{
			Cache:  cache,
			Config: core.TemplateCacheConfig{TemplateDir: "does-not-exist", TTL: time.Minute},
		})

		got, err := svc.TemplateHTML(context.Background(), "modern")
		require.NoError(t, err)
		assert.Equal(t, []byte("<html>cached</html>"), got)
	})

	t.Run("cache miss reads disk and caches", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeTemplate(t, dir, "modern", "<html>disk</html>")

		ctrl := gomock.NewController(t)
		cache := mocks.NewMockCacheRepository(ctrl)
		cache.EXPECT().Get(gomock.Any(), "template:html:modern").Return(nil, nil)
		cache.EXPECT().
			Set(gomock.Any(), "template:html:modern", []byte("<html>disk</html>"), time.Minute).
			Return(nil)

		svc := core.NewTemplateCacheService(core.TemplateCacheServiceOptions{
			Cache:  cache,
			Config: core.TemplateCacheConfig{TemplateDir: dir, TTL: time.Minute},
		})

		got, err := svc.TemplateHTML(context.Background(), "modern")
		require.NoError(t, err)
		assert.Equal(t, []byte("<html>disk</html>"), got)
	})

	t.Run("cache failure falls through to disk", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeTemplate(t, dir, "classic", "<html>v1</html>")

		ctrl := gomock.NewController(t)
		cache := mocks.NewMockCacheRepository(ctrl)
		cache.EXPECT().
			Get(gomock.Any(), "template:html:classic").
			Return(nil, errors.New("redis down"))
		cache.EXPECT().
			Set(gomock.Any(), "template:html:classic", gomock.Any(), gomock.Any()).
			Return(errors.New("redis down"))

		svc := core.NewTemplateCacheService(core.TemplateCacheServiceOptions{
			Cache:  cache,
			Config: core.TemplateCacheConfig{TemplateDir: dir, TTL: time.Minute},
		})

		got, err := svc.TemplateHTML(context.Background(), "classic")
		require.NoError(t, err)
		assert.Equal(t, []byte("<html>v1</html>"), got)
	})

	t.Run("unknown template surfaces file error", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		cache := mocks.NewMockCacheRepository(ctrl)
		cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil)

		svc := core.NewTemplateCacheService(core.TemplateCacheServiceOptions{
			Cache:  cache,
			Config: core.TemplateCacheConfig{TemplateDir: t.TempDir(), TTL: time.Minute},
		})

		_, err := svc.TemplateHTML(context.Background(), "missing")
		assert.Error(t, err)
	})

	t.Run("template id cannot escape the template dir", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeTemplate(t, dir, "passwd", "<html>safe</html>")

		ctrl := gomock.NewController(t)
		cache := mocks.NewMockCacheRepository(ctrl)
		cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil)
		cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		svc := core.NewTemplateCacheService(core.TemplateCacheServiceOptions{
			Cache:  cache,
			Config: core.TemplateCacheConfig{TemplateDir: dir, TTL: time.Minute},
		})

		got, err := svc.TemplateHTML(context.Background(), "../../etc/passwd")
		require.NoError(t, err)
		assert.Equal(t, []byte("<html>safe</html>"), got)
	})
}

func TestTemplateCacheService_Invalidate(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCacheRepository(ctrl)
	cache.EXPECT().Delete(gomock.Any(), "template:html:modern").Return(true, nil)

	svc := core.NewTemplateCacheService(core.TemplateCacheServiceOptions{
		Cache:  cache,
		Config: core.DefaultTemplateCacheConfig(),
	})

	assert.NoError(t, svc.Invalidate(context.Background(), "modern"))
}
