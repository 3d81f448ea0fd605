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
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/czcorpus/cnc-gokit/fs"
	"github.com/czcorpus/cnc-gokit/httpclient"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

const (
	idleConnTimeoutSecs = 30
)

var ErrFetchFailed = errors.New("failed to fetch pretrained weights")

// Fetcher makes sure pretrained weights are available locally.
// Missing files are downloaded from a model hub.
type Fetcher struct {
	hubURL       string
	jobName      string
	registry     *Registry
	client       *http.Client
	ShowProgress bool
}

func NewFetcher(hubURL, jobName string, registry *Registry) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = httpclient.TransportMaxIdleConns
	transport.MaxConnsPerHost = httpclient.TransportMaxConnsPerHost
	transport.MaxIdleConnsPerHost = httpclient.TransportMaxIdleConnsPerHost
	transport.IdleConnTimeout = time.Duration(idleConnTimeoutSecs) * time.Second
	return &Fetcher{
		hubURL:   hubURL,
		jobName:  jobName,
		registry: registry,
		client:   &http.Client{Transport: transport},
	}
}

// URL returns a deterministic location of a weights file
// within the model hub.
func (f *Fetcher) URL(weightsFile string) (string, error) {
	if f.hubURL == "" {
		return "", fmt.Errorf("%w: model hub URL not configured", ErrFetchFailed)
	}
	return url.JoinPath(f.hubURL, f.jobName, weightsFile)
}

func (f *Fetcher) isIntact(name, path string) (bool, error) {
	isFile, err := fs.IsFile(path)
	if err != nil || !isFile {
		return false, err
	}
	if f.registry == nil {
		return true, nil
	}
	rec, ok, err := f.registry.Get(name)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	size, err := fs.FileSize(path)
	if err != nil {
		return false, err
	}
	if size != rec.Size {
		log.Warn().
			Str("path", path).
			Int64("expectedSize", rec.Size).
			Int64("actualSize", size).
			Msg("weights file size mismatch, going to fetch it again")
		if err := f.registry.Delete(name); err != nil {
			log.Warn().Err(err).Str("name", name).Msg("failed to remove stale fetch record")
		}
		return false, nil
	}
	return true, nil
}

// Resolve returns a path of the weights file within dir. In case
// the file is missing (or it is truncated), it is downloaded first.
// The call blocks until the download is finished or ctx is cancelled.
func (f *Fetcher) Resolve(ctx context.Context, weightsFile, dir string) (string, error) {
	path := filepath.Join(dir, weightsFile)
	ok, err := f.isIntact(weightsFile, path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve weights: %w", err)
	}
	if ok {
		return path, nil
	}
	srcURL, err := f.URL(weightsFile)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to resolve weights: %w", err)
	}
	log.Info().Str("url", srcURL).Str("path", path).Msg("downloading pretrained weights")
	size, err := f.download(ctx, srcURL, path)
	if err != nil {
		return "", err
	}
	if f.registry != nil {
		rec := FetchRecord{URL: srcURL, Path: path, Size: size, FetchedAt: time.Now()}
		if err := f.registry.Store(weightsFile, rec); err != nil {
			log.Warn().Err(err).Msg("failed to register fetched weights")
		}
	}
	return path, nil
}

func (f *Fetcher) download(ctx context.Context, srcURL, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrFetchFailed, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s responded with status %d", ErrFetchFailed, srcURL, resp.StatusCode)
	}
	tmpPath := path + ".part"
	fw, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrFetchFailed, err)
	}
	var dst io.Writer = fw
	if f.ShowProgress {
		bar := progressbar.DefaultBytes(resp.ContentLength, "downloading weights")
		dst = io.MultiWriter(fw, bar)
	}
	size, err := io.Copy(dst, resp.Body)
	if cerr := fw.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: %s", ErrFetchFailed, err)
	}
	return size, nil
}
