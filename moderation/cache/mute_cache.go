// moderation/cache/mute_cache.go
package cache

import (
	"sync"

	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/timeutil"
)

// MuteCache keeps the active mute for every online player in memory so the
// chat path never touches the database. Entries expire lazily: a timed mute
// whose expiration has passed is dropped the first time it is read.
type MuteCache struct {
	mu    sync.RWMutex
	mutes map[string]*models.Punishment // player UUID -> active mute
}

// NewMuteCache creates an empty MuteCache.
func NewMuteCache() *MuteCache {
	return &MuteCache{
		mutes: make(map[string]*models.Punishment),
	}
}

// Put records the player's active mute, replacing any previous entry.
func (mc *MuteCache) Put(playerUUID string, mute *models.Punishment) {
	if mute == nil {
		return
	}
	mc.mu.Lock()
	mc.mutes[playerUUID] = mute
	mc.mu.Unlock()
}

// Get returns the player's active mute, or nil if the player is not muted.
// An entry whose expiration has passed is removed and nil is returned.
func (mc *MuteCache) Get(playerUUID string) *models.Punishment {
	mc.mu.RLock()
	mute, ok := mc.mutes[playerUUID]
	mc.mu.RUnlock()
	if !ok {
		return nil
	}

	if mute.IsExpiredAt(timeutil.Now()) {
		mc.mu.Lock()
		// Re-check under the write lock; another goroutine may have replaced
		// the entry with a fresh mute in the meantime.
		if current, ok := mc.mutes[playerUUID]; ok && current == mute {
			delete(mc.mutes, playerUUID)
		}
		mc.mu.Unlock()
		return nil
	}
	return mute
}

// Remove drops the player's cached mute, if any. Used on unmute and on quit.
func (mc *MuteCache) Remove(playerUUID string) {
	mc.mu.Lock()
	delete(mc.mutes, playerUUID)
	mc.mu.Unlock()
}

// Len returns the number of cached mutes, expired entries included.
func (mc *MuteCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.mutes)
}
