package detection

import (
	"sync"
	"time"

	"github.com/khaledhikmat/wildwatch-go/model"
)

// Key scopes throttling. Proximity events are keyed apart from plain human
// sightings on the same camera.
type Key struct {
	CameraID  string
	Tier      model.DangerTier
	Proximity bool
}

// Throttle remembers when each key was last admitted.
type Throttle struct {
	mu   sync.Mutex
	last map[Key]time.Time
}

func NewThrottle() *Throttle {
	return &Throttle{
		last: make(map[Key]time.Time),
	}
}

// ShouldEmit admits the key when it was never seen or when at least cooldown
// elapsed since the last admission, and records now in that case. A clock
// that moved backwards counts as within cooldown.
func (t *Throttle) ShouldEmit(key Key, now time.Time, cooldown time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[key]; ok {
		elapsed := now.Sub(last)
		if elapsed < 0 || elapsed < cooldown {
			return false
		}
	}

	t.last[key] = now
	return true
}

// Last returns the last admission time of a key.
func (t *Throttle) Last(key Key) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.last[key]
	return last, ok
}

func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}

func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[Key]time.Time)
}
