package library

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/choreo/internal/clip"
)

func TestExportImportRoundTrip(t *testing.T) {
	lib := New(Options{})
	lib.AddAnimation(clip.AnimationClip{Name: "Wave", URL: "anim/wave.glb", Type: clip.TypeGesture, DurationMs: 3000, Tags: []string{"hip-hop"}})
	lib.AddPose(clip.PoseClip{Name: "T-Pose", URL: "pose/t.glb", DurationMs: 1000})

	data, err := lib.Export()
	require.NoError(t, err)

	other := New(Options{})
	require.NoError(t, other.Import(data))

	s := other.Stats()
	assert.Equal(t, 1, s.Animations)
	assert.Equal(t, 1, s.Poses)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "version")
	assert.Contains(t, doc, "animations")
}

func TestImportRejectsMissingVersion(t *testing.T) {
	lib := New(Options{})
	lib.AddAnimation(clip.AnimationClip{Name: "Keep", URL: "u", Type: clip.TypeDance, DurationMs: 1000})
	before, err := lib.Export()
	require.NoError(t, err)

	err = lib.Import([]byte(`{"animations": []}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSnapshot))

	after, err := lib.Export()
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "failed import must leave state untouched")
}

func TestImportRejectsNonSequenceAnimations(t *testing.T) {
	lib := New(Options{})
	err := lib.Import([]byte(`{"version": "1.0", "animations": {"oops": true}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSnapshot))

	err = lib.Import([]byte(`{"version": "1.0"}`))
	require.Error(t, err)
}

func TestImportPreservesReservedArrays(t *testing.T) {
	lib := New(Options{})
	payload := `{"version":"1.0","animations":[],"poses":[],"choreographies":[],"expressions":[{"id":"x1"}]}`
	require.NoError(t, lib.Import([]byte(payload)))

	out, err := lib.Export()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"expressions"`)
	assert.Contains(t, string(out), `"x1"`)
}

func TestLoadPrefersCacheOverRemote(t *testing.T) {
	cachedSnap := New(Options{})
	cachedSnap.AddAnimation(clip.AnimationClip{Name: "Cached", URL: "u", Type: clip.TypeDance, DurationMs: 1000})
	cached, err := cachedSnap.Export()
	require.NoError(t, err)

	cache := NewFileCache(filepath.Join(t.TempDir(), "library.json"))
	require.NoError(t, cache.Set(cached))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("remote must not be hit when the cache has a snapshot")
	}))
	defer srv.Close()

	lib := New(Options{Cache: cache, Fetcher: NewHTTPFetcher(srv.URL)})
	lib.Load(context.Background())

	got := lib.Animations()
	require.Len(t, got, 1)
	assert.Equal(t, "Cached", got[0].Name)
	assert.False(t, lib.Dirty())
}

func TestLoadFallsBackToRemote(t *testing.T) {
	remoteSnap := New(Options{})
	remoteSnap.AddAnimation(clip.AnimationClip{Name: "Remote", URL: "u", Type: clip.TypeDance, DurationMs: 1000})
	remote, err := remoteSnap.Export()
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(remote)
	}))
	defer srv.Close()

	cache := NewFileCache(filepath.Join(t.TempDir(), "library.json"))
	lib := New(Options{Cache: cache, Fetcher: NewHTTPFetcher(srv.URL)})
	lib.Load(context.Background())

	got := lib.Animations()
	require.Len(t, got, 1)
	assert.Equal(t, "Remote", got[0].Name)
}

func TestLoadDegradesToEmptyOnTotalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	lib := New(Options{Fetcher: NewHTTPFetcher(srv.URL)})
	lib.Load(context.Background())

	s := lib.Stats()
	assert.Zero(t, s.Animations)
	assert.Zero(t, s.Poses)
	assert.Zero(t, s.Choreographies)
}

func TestSaveClearsDirtyOnlyOnSuccess(t *testing.T) {
	cache := NewFileCache(filepath.Join(t.TempDir(), "library.json"))
	lib := New(Options{Cache: cache})
	lib.AddAnimation(clip.AnimationClip{Name: "A", URL: "u", Type: clip.TypeDance, DurationMs: 1000})
	require.True(t, lib.Dirty())

	lib.Save()
	assert.False(t, lib.Dirty())

	// A save with no cache leaves the dirty flag set so a retry is safe.
	noCache := New(Options{})
	noCache.AddAnimation(clip.AnimationClip{Name: "B", URL: "u", Type: clip.TypeDance, DurationMs: 1000})
	noCache.Save()
	assert.True(t, noCache.Dirty())
}

func TestFileCacheMissIsNotAnError(t *testing.T) {
	cache := NewFileCache(filepath.Join(t.TempDir(), "missing.json"))
	data, err := cache.Get()
	require.NoError(t, err)
	assert.Nil(t, data)
	require.NoError(t, cache.Remove())
}
