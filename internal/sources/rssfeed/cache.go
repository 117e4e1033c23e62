package rssfeed

import (
	log "github.com/sirupsen/logrus"

	"feedflow/internal/models"
	"feedflow/internal/utils"
)

// detailCache holds full item bodies between the list fetch that saw them
// and the detail view that wants them.
type detailCache struct {
	cache *utils.TTLCache[models.Thread]
}

func newDetailCache(size int) *detailCache {
	c, err := utils.NewTTLCache[models.Thread](size)
	if err != nil {
		// Only reachable with a non-positive size.
		log.Panicf("rss detail cache: %v", err)
	}
	return &detailCache{cache: c}
}

func (d *detailCache) put(th models.Thread) {
	d.cache.Set(th.ID, th, detailTTL)
}

func (d *detailCache) get(id string) (models.Thread, bool) {
	return d.cache.Get(id)
}
