// Package store provides the local CSV cache for a fetched dataset and
// the cache-or-fetch source selection used by the batch job.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ballotflow/mailballot/pkg/dataset"
	"github.com/ballotflow/mailballot/pkg/fetch"
)

// ErrCacheMiss indicates no cached dataset exists at the store's path.
var ErrCacheMiss = errors.New("cache miss")

// Prometheus metrics for dataset cache operations.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dataset_cache_hits_total",
		Help: "Runs that loaded the dataset from the local CSV cache",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dataset_cache_misses_total",
		Help: "Runs that had to fetch the dataset from the API",
	})
)

// Store is a file-backed dataset cache holding one CSV file.
type Store struct {
	path   string
	logger zerolog.Logger
}

// New creates a store for the given CSV path.
func New(path string) *Store {
	return &Store{
		path:   path,
		logger: log.With().Str("component", "dataset-store").Str("path", path).Logger(),
	}
}

// Path returns the location of the cache file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the cached dataset. Returns ErrCacheMiss when the file
// does not exist.
func (s *Store) Load(ctx context.Context) (*dataset.Table, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			cacheMissesTotal.Inc()
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	table, err := dataset.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	cacheHitsTotal.Inc()
	s.logger.Info().Int("rows", table.Len()).Msg("Loaded dataset from cache")
	return table, nil
}

// Save writes the dataset to the cache file, replacing any previous
// content. The write goes through a temp file and rename so a crash
// mid-write never leaves a truncated cache behind.
func (s *Store) Save(ctx context.Context, table *dataset.Table) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".dataset-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := dataset.WriteCSV(tmp, table); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}

	s.logger.Info().Int("rows", table.Len()).Msg("Saved dataset to cache")
	return nil
}

// Source is the interface the selector needs from a bulk fetcher.
type Source interface {
	FetchAll(ctx context.Context) (*fetch.Result, error)
}

// Resolve returns the dataset, preferring the cache: on a hit the cached
// table is returned and no network request is made; on a miss the source
// is fetched and the result saved before returning.
func Resolve(ctx context.Context, s *Store, src Source) (*dataset.Table, error) {
	table, err := s.Load(ctx)
	if err == nil {
		return table, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return nil, err
	}

	result, err := src.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.Save(ctx, result.Table); err != nil {
		return nil, err
	}

	return result.Table, nil
}
