// Package orchestrator drives the cache-then-refresh flow between the
// source adapters and the snapshot store: serve what we have, fetch what
// we don't, and never race duplicate fetches for the same listing.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"feedflow/internal/models"
	"feedflow/internal/sources"
	"feedflow/internal/store"
	"feedflow/internal/utils"
)

const (
	defaultListTTL   = 10 * time.Minute
	defaultDetailTTL = 30 * time.Minute
	refreshTimeout   = 30 * time.Second

	hotListSize   = 256
	hotDetailSize = 128
)

type Orchestrator struct {
	registry  *sources.Registry
	snap      *store.Store
	listTTL   time.Duration
	detailTTL time.Duration

	// In-memory layer over the snapshot store so repeat reads of a hot
	// listing or detail skip sqlite entirely.
	hotLists   *utils.TTLCache[[]models.Thread]
	hotDetails *utils.TTLCache[models.ThreadDetail]

	mu       sync.Mutex
	inflight map[string]bool
	wg       sync.WaitGroup
}

func New(registry *sources.Registry, snap *store.Store) *Orchestrator {
	hotLists, err := utils.NewTTLCache[[]models.Thread](hotListSize)
	if err != nil {
		log.Panicf("listing cache: %v", err)
	}
	hotDetails, err := utils.NewTTLCache[models.ThreadDetail](hotDetailSize)
	if err != nil {
		log.Panicf("detail cache: %v", err)
	}
	return &Orchestrator{
		registry:   registry,
		snap:       snap,
		listTTL:    defaultListTTL,
		detailTTL:  defaultDetailTTL,
		hotLists:   hotLists,
		hotDetails: hotDetails,
		inflight:   make(map[string]bool),
	}
}

// Flush waits for background refreshes to settle.
func (o *Orchestrator) Flush() { o.wg.Wait() }

// acquire marks a fetch in flight. A second caller for the same key gets
// false and must fall back to whatever snapshot exists.
func (o *Orchestrator) acquire(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[key] {
		return false
	}
	o.inflight[key] = true
	return true
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, key)
}

// cachedList reads a fresh listing, memory first, then sqlite. A sqlite
// hit is promoted into memory for the next read.
func (o *Orchestrator) cachedList(key string) ([]models.Thread, bool) {
	if threads, ok := o.hotLists.Get(key); ok {
		return threads, true
	}
	threads, ok := o.snap.TopicList(key, o.listTTL)
	if ok {
		o.hotLists.Set(key, threads, o.listTTL)
	}
	return threads, ok
}

func (o *Orchestrator) saveList(key string, threads []models.Thread) {
	if err := o.snap.SaveTopicList(key, threads); err != nil {
		log.Warnf("listing %s not cached: %v", key, err)
	}
	o.hotLists.Set(key, threads, o.listTTL)
}

func (o *Orchestrator) cachedDetail(threadID string) (models.ThreadDetail, bool) {
	if detail, ok := o.hotDetails.Get(threadID); ok {
		return detail, true
	}
	detail, ok := o.snap.ThreadDetail(threadID, o.detailTTL)
	if ok {
		o.hotDetails.Set(threadID, detail, o.detailTTL)
	}
	return detail, ok
}

func (o *Orchestrator) saveDetail(threadID string, detail models.ThreadDetail) {
	if err := o.snap.SaveThreadDetail(threadID, detail); err != nil {
		log.Warnf("detail %s not cached: %v", threadID, err)
	}
	o.hotDetails.Set(threadID, detail, o.detailTTL)
}

func (o *Orchestrator) source(sourceID string) (sources.Source, error) {
	src, ok := o.registry.Get(sourceID)
	if !ok {
		return nil, fmt.Errorf("unknown source %q", sourceID)
	}
	return src, nil
}

// Communities lists a source's categories, persisting the result so the
// last known set survives upstream outages.
func (o *Orchestrator) Communities(ctx context.Context, sourceID string) ([]models.Community, error) {
	src, err := o.source(sourceID)
	if err != nil {
		return nil, err
	}
	fresh, err := src.ListCategories(ctx)
	if err != nil {
		if sources.IsCancellation(err) {
			return nil, err
		}
		if cached, cerr := o.snap.Communities(sourceID); cerr == nil && len(cached) > 0 {
			log.WithField("source", sourceID).Warnf("serving stored communities, refresh failed: %v", err)
			return cached, nil
		}
		return nil, err
	}
	if err := o.snap.SaveCommunities(sourceID, fresh); err != nil {
		log.WithField("source", sourceID).Warnf("communities not persisted: %v", err)
	}
	return fresh, nil
}

// ListResult is one page of a listing plus the freshness facts the caller
// needs to decide what to do next.
type ListResult struct {
	Threads     []models.Thread `json:"threads"`
	FromCache   bool            `json:"from_cache"`
	CanLoadMore bool            `json:"can_load_more"`
}

// ListThreads serves a (source, community, page) listing cache-first. A
// fresh snapshot is returned immediately and a background refresh diffs
// the upstream against it; the stored copy is only replaced when the
// content actually changed and the caller reported being at the top, so a
// reader mid-scroll is never yanked to a reordered list. Duplicate calls
// while a fetch is in flight do not fetch again.
func (o *Orchestrator) ListThreads(ctx context.Context, sourceID, communityID string, page int, atTop bool) (ListResult, error) {
	src, err := o.source(sourceID)
	if err != nil {
		return ListResult{}, err
	}
	key := store.TopicKey(sourceID, communityID, page)

	if cached, ok := o.cachedList(key); ok {
		o.refreshListAsync(src, communityID, page, key, cached, atTop)
		return ListResult{Threads: cached, FromCache: true, CanLoadMore: len(cached) > 0}, nil
	}

	if !o.acquire(key) {
		stale, _ := o.snap.TopicList(key, 0)
		return ListResult{Threads: stale, FromCache: true, CanLoadMore: len(stale) > 0}, nil
	}
	defer o.release(key)

	fresh, err := o.fetchList(ctx, src, sourceID, communityID, page)
	if err != nil {
		if sources.IsCancellation(err) {
			return ListResult{}, err
		}
		// Stale beats an error screen.
		if stale, ok := o.snap.TopicList(key, 0); ok {
			log.WithField("source", sourceID).Warnf("serving stale %s: %v", key, err)
			return ListResult{Threads: stale, FromCache: true, CanLoadMore: len(stale) > 0}, nil
		}
		return ListResult{}, err
	}
	o.saveList(key, fresh)
	return ListResult{Threads: fresh, CanLoadMore: len(fresh) > 0}, nil
}

func (o *Orchestrator) fetchList(ctx context.Context, src sources.Source, sourceID, communityID string, page int) ([]models.Thread, error) {
	communities, err := o.snap.Communities(sourceID)
	if err != nil {
		communities = nil
	}
	return src.ListThreads(ctx, communityID, communities, page)
}

func (o *Orchestrator) refreshListAsync(src sources.Source, communityID string, page int, key string, cached []models.Thread, atTop bool) {
	if !o.acquire(key) {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release(key)
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		fresh, err := o.fetchList(ctx, src, src.ID(), communityID, page)
		if err != nil {
			if !sources.IsCancellation(err) {
				log.Warnf("background refresh of %s failed: %v", key, err)
			}
			return
		}
		if len(fresh) == 0 || models.SameListing(fresh, cached) {
			return
		}
		if !atTop {
			return
		}
		o.saveList(key, fresh)
	}()
}

// DetailResult is a thread detail plus whether it reflects the upstream
// right now or a snapshot.
type DetailResult struct {
	Detail    models.ThreadDetail `json:"detail"`
	FromCache bool                `json:"from_cache"`
	IsLatest  bool                `json:"is_latest"`
}

// ThreadDetail serves page 1 cache-first with a background refresh; later
// pages always go upstream. listItem, when present, fills in what detail
// endpoints drop: the community tag and the caller's like state.
func (o *Orchestrator) ThreadDetail(ctx context.Context, sourceID, threadID string, page int, listItem *models.Thread) (DetailResult, error) {
	src, err := o.source(sourceID)
	if err != nil {
		return DetailResult{}, err
	}
	key := sourceID + "_detail_" + threadID

	if page <= 1 {
		if cached, ok := o.cachedDetail(threadID); ok {
			o.refreshDetailAsync(src, threadID, key, listItem)
			return DetailResult{Detail: cached, FromCache: true}, nil
		}
	}

	if !o.acquire(key) {
		if cached, ok := o.snap.ThreadDetail(threadID, 0); ok && page <= 1 {
			return DetailResult{Detail: cached, FromCache: true}, nil
		}
		return DetailResult{}, fmt.Errorf("fetch already in flight for %s", threadID)
	}
	defer o.release(key)

	detail, err := src.FetchThreadDetail(ctx, threadID, page)
	if err != nil {
		if sources.IsCancellation(err) {
			return DetailResult{}, err
		}
		if cached, ok := o.snap.ThreadDetail(threadID, 0); ok && page <= 1 {
			log.WithField("source", sourceID).Warnf("serving stale detail %s: %v", threadID, err)
			return DetailResult{Detail: cached, FromCache: true}, nil
		}
		return DetailResult{}, err
	}
	detail = mergeListItem(detail, listItem)
	if page <= 1 {
		o.saveDetail(threadID, detail)
	}
	return DetailResult{Detail: detail, IsLatest: true}, nil
}

func (o *Orchestrator) refreshDetailAsync(src sources.Source, threadID, key string, listItem *models.Thread) {
	if !o.acquire(key) {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release(key)
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		detail, err := src.FetchThreadDetail(ctx, threadID, 1)
		if err != nil {
			if !sources.IsCancellation(err) {
				log.Warnf("background refresh of detail %s failed: %v", threadID, err)
			}
			return
		}
		if detail.Thread.ID == "" {
			return
		}
		detail = mergeListItem(detail, listItem)
		o.saveDetail(threadID, detail)
	}()
}

// mergeListItem fills detail fields the detail endpoint does not carry
// from the listing row the caller navigated from.
func mergeListItem(detail models.ThreadDetail, listItem *models.Thread) models.ThreadDetail {
	if listItem == nil {
		return detail
	}
	if detail.Thread.Community.ID == "" {
		detail.Thread.Community = listItem.Community
	}
	if detail.Thread.Title == "" {
		detail.Thread.Title = listItem.Title
	}
	detail.Thread.IsLiked = listItem.IsLiked
	return detail
}

// PostComment submits a reply and re-fetches the last known page so the
// cached detail shows the new comment.
func (o *Orchestrator) PostComment(ctx context.Context, sourceID, threadID, communityID, content string) error {
	src, err := o.source(sourceID)
	if err != nil {
		return err
	}
	if err := src.PostComment(ctx, threadID, communityID, content); err != nil {
		return err
	}
	lastPage := 1
	if cached, ok := o.snap.ThreadDetail(threadID, 0); ok && cached.TotalPages > 1 {
		lastPage = cached.TotalPages
	}
	detail, err := src.FetchThreadDetail(ctx, threadID, lastPage)
	if err != nil {
		if sources.IsCancellation(err) {
			return nil
		}
		log.WithField("source", sourceID).Warnf("post-reply refresh of %s failed: %v", threadID, err)
		return nil
	}
	if lastPage == 1 && detail.Thread.ID != "" {
		o.saveDetail(threadID, detail)
	}
	return nil
}

// CreateThread submits a new thread and drops the first listing page so
// the next load sees it.
func (o *Orchestrator) CreateThread(ctx context.Context, sourceID, communityID, title, content string) error {
	src, err := o.source(sourceID)
	if err != nil {
		return err
	}
	if err := src.CreateThread(ctx, communityID, title, content); err != nil {
		return err
	}
	key := store.TopicKey(sourceID, communityID, 1)
	o.hotLists.Delete(key)
	if err := o.snap.DeleteTopicList(key); err != nil {
		log.Warnf("listing %s not invalidated: %v", key, err)
	}
	return nil
}
