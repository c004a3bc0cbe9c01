package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// MetadataSource supplies the pool records to import, keyed by pool name.
type MetadataSource interface {
	FetchPools(ctx context.Context) (map[string]*PoolRecord, error)
}

type httpMetadataSource struct {
	client      *http.Client
	listURL     string
	poolDataURL string
	concurrency int
	prober      CapabilityProber
	log         *zap.Logger
}

func NewMetadataSource(conf *MetadataConf, prober CapabilityProber, log *zap.Logger) MetadataSource {
	return &httpMetadataSource{
		client:      &http.Client{Timeout: time.Second * time.Duration(conf.TimeoutSec)},
		listURL:     conf.ListURL,
		poolDataURL: conf.PoolDataURL,
		concurrency: conf.Concurrency,
		prober:      prober,
		log:         log,
	}
}

type HTTPStatusError struct {
	URL    string
	Status int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
}

func (s *httpMetadataSource) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pool-registry-importer")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &HTTPStatusError{URL: url, Status: resp.StatusCode}
	}

	if err = json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

type listingEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ListPoolNames returns the sorted directory names of the listing endpoint.
func (s *httpMetadataSource) ListPoolNames(ctx context.Context) ([]string, error) {
	var entries []listingEntry
	if err := s.getJSON(ctx, s.listURL, &entries); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type == "dir" {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *httpMetadataSource) poolURL(name string) string {
	return strings.ReplaceAll(s.poolDataURL, "{}", name)
}

func (s *httpMetadataSource) FetchPool(ctx context.Context, name string) (*PoolRecord, error) {
	record := &PoolRecord{}
	if err := s.getJSON(ctx, s.poolURL(name), record); err != nil {
		return nil, fmt.Errorf("pool %s: %w", name, err)
	}
	record.Name = name

	if err := record.validate(); err != nil {
		return nil, err
	}

	var caps Capabilities
	if !record.IsMetapool() {
		var err error
		if caps, err = s.prober.Probe(ctx, record.SwapAddress); err != nil {
			return nil, fmt.Errorf("pool %s: probe %s: %w", name, record.SwapAddress, err)
		}
	}
	record.resolveKind(caps)
	return record, nil
}

// FetchPools fetches every listed pool on a bounded worker pool. The first
// failure cancels the rest and is returned.
func (s *httpMetadataSource) FetchPools(ctx context.Context) (map[string]*PoolRecord, error) {
	names, err := s.ListPoolNames(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info("pools listed", zap.Int("count", len(names)))

	workPool, err := ants.NewPool(s.concurrency)
	if err != nil {
		return nil, err
	}
	defer workPool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		records  = make(map[string]*PoolRecord, len(names))
	)

	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for _, name := range names {
		wg.Add(1)
		err = workPool.Submit(func() {
			defer wg.Done()
			record, err := s.FetchPool(ctx, name)
			if err != nil {
				fail(err)
				return
			}

			mu.Lock()
			records[name] = record
			mu.Unlock()
			s.log.Debug("pool fetched", zap.String("pool", name), zap.Stringer("kind", record.Kind))
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return records, nil
}
