package cache

import (
	"encoding/json"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Prune removes every expired or unreadable cache entry and returns how many were removed.
// Expiry is otherwise lazy; Prune only runs when a caller asks for it.
func (c *Cache) Prune() int {
	log.Debug("Started pruning expired cache")

	keys, err := c.store.AllKeys()
	if err != nil {
		c.report("prune", "Error clearing cache", err)
		return 0
	}

	now := c.now()
	full := c.makeKey("")
	removed := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, full) {
			continue
		}
		if !c.stale(k, now) {
			continue
		}
		log.Debugf("Entry %s has expired", k)
		if err := c.store.RemoveKey(k); err != nil {
			log.Errorf("Failed to remove cache entry %s: %s", k, err)
			continue
		}
		removed++
	}

	log.Debugf("Finished pruning expired cache, %d removed", removed)
	return removed
}

// stale reports whether the stored entry k is expired or cannot be read
func (c *Cache) stale(k string, now time.Time) bool {
	raw, ok, err := c.store.GetItem(k)
	if err != nil {
		log.Errorf("Failed to read cache entry %s: %s", k, err)
		return true
	}
	if !ok {
		return false
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return true
	}
	return !e.Valid(now)
}
