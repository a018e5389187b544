package cmd

import (
	"fmt"
	"log"

	"github.com/kozaktomas/face-search/internal/config"
	"github.com/kozaktomas/face-search/internal/corpus"
	"github.com/kozaktomas/face-search/internal/faceapi"
	"github.com/kozaktomas/face-search/internal/facecache"
	"github.com/kozaktomas/face-search/internal/facematch"
)

// pipeline holds the wired search components.
type pipeline struct {
	client   *faceapi.Client
	cache    *facecache.Cache // nil when caching is disabled
	corpus   *corpus.Dir
	searcher *facematch.Searcher
}

func newPipeline(cfg *config.Config) *pipeline {
	client := faceapi.NewClient(cfg.FaceAPI.URL, faceapi.WithRateLimit(cfg.FaceAPI.RPS, cfg.FaceAPI.Burst))

	var source facematch.DescriptorSource = client
	var cache *facecache.Cache
	if cfg.Cache.Enabled {
		cache = facecache.New(client, cfg.Cache.MaxEntries)
		source = cache
	}

	dir := corpus.NewDir(cfg.Corpus.Dir, cfg.Corpus.Extensions)

	return &pipeline{
		client:   client,
		cache:    cache,
		corpus:   dir,
		searcher: facematch.NewSearcher(source, dir, cfg.SearchOptions()),
	}
}

// onCorpusChange drops cached descriptors after a file in the corpus changed.
func (p *pipeline) onCorpusChange(name string) {
	entries := p.cache.Stats().Entries
	p.cache.Purge()
	log.Printf("Corpus file %s changed, dropped %d cached descriptor sets", name, entries)
}

// watchCorpus purges cached descriptors whenever the photo directory changes.
func (p *pipeline) watchCorpus() (*corpus.Watcher, error) {
	if p.cache == nil {
		return nil, nil
	}
	w, err := corpus.Watch(p.corpus.Path(), p.onCorpusChange)
	if err != nil {
		return nil, fmt.Errorf("starting corpus watcher: %w", err)
	}
	return w, nil
}
