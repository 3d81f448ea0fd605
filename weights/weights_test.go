// Copyright 2025 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2025 Department of Linguistics,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package weights

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPayload = "pretrained-weights-content"

func newHub(t *testing.T, hits *atomic.Int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/train_yolo/yolov4-tiny.conv.29" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(testPayload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRegistry(t *testing.T) {
	reg, err := OpenRegistry(t.TempDir())
	require.NoError(t, err)
	defer reg.Close()

	_, ok, err := reg.Get("foo")
	assert.NoError(t, err)
	assert.False(t, ok)

	rec := FetchRecord{URL: "http://hub/foo", Path: "/tmp/foo", Size: 42, FetchedAt: time.Now().Truncate(time.Second)}
	require.NoError(t, reg.Store("foo", rec))
	ans, ok, err := reg.Get("foo")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rec.URL, ans.URL)
	assert.Equal(t, rec.Size, ans.Size)
	assert.True(t, rec.FetchedAt.Equal(ans.FetchedAt))

	require.NoError(t, reg.Delete("foo"))
	_, ok, err = reg.Get("foo")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestFetcherURL(t *testing.T) {
	f := NewFetcher("https://hub.example.com/plugins/", "train_yolo", nil)
	u, err := f.URL("yolov4.conv.137")
	assert.NoError(t, err)
	assert.Equal(t, "https://hub.example.com/plugins/train_yolo/yolov4.conv.137", u)

	_, err = NewFetcher("", "train_yolo", nil).URL("x")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestResolveDownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	hub := newHub(t, &hits)
	reg, err := OpenRegistry(t.TempDir())
	require.NoError(t, err)
	defer reg.Close()

	dir := filepath.Join(t.TempDir(), "pretrained")
	f := NewFetcher(hub.URL, "train_yolo", reg)
	path, err := f.Resolve(context.Background(), "yolov4-tiny.conv.29", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testPayload, string(data))
	assert.NoFileExists(t, path+".part")

	_, err = f.Resolve(context.Background(), "yolov4-tiny.conv.29", dir)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	rec, ok, err := reg.Get("yolov4-tiny.conv.29")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(len(testPayload)), rec.Size)
}

func TestResolveRefetchesTruncated(t *testing.T) {
	var hits atomic.Int32
	hub := newHub(t, &hits)
	reg, err := OpenRegistry(t.TempDir())
	require.NoError(t, err)
	defer reg.Close()

	dir := t.TempDir()
	f := NewFetcher(hub.URL, "train_yolo", reg)
	path, err := f.Resolve(context.Background(), "yolov4-tiny.conv.29", dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("pre"), 0644))

	_, err = f.Resolve(context.Background(), "yolov4-tiny.conv.29", dir)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testPayload, string(data))
}

func TestResolveTruncatedDropsStaleRecord(t *testing.T) {
	reg, err := OpenRegistry(t.TempDir())
	require.NoError(t, err)
	defer reg.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "darknet53.conv.74")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	require.NoError(t, reg.Store("darknet53.conv.74", FetchRecord{Path: path, Size: 100, FetchedAt: time.Now()}))

	_, err = NewFetcher("", "train_yolo", reg).Resolve(context.Background(), "darknet53.conv.74", dir)
	assert.ErrorIs(t, err, ErrFetchFailed)
	_, ok, err := reg.Get("darknet53.conv.74")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveExistingWithoutHub(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "darknet53.conv.74")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	ans, err := NewFetcher("", "train_yolo", nil).Resolve(context.Background(), "darknet53.conv.74", dir)
	assert.NoError(t, err)
	assert.Equal(t, path, ans)
}

func TestResolveNotFound(t *testing.T) {
	var hits atomic.Int32
	hub := newHub(t, &hits)
	dir := t.TempDir()
	_, err := NewFetcher(hub.URL, "train_yolo", nil).Resolve(context.Background(), "unknown.conv", dir)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.NoFileExists(t, filepath.Join(dir, "unknown.conv"))
}
