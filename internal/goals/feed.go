package goals

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// maxPerUser caps the stored notifications per user; unread entries are
	// always kept, the overflow drops the oldest read ones first.
	maxPerUser = 10

	// readRetention is how old (by creation) a read notification may get
	// before the next read of the feed drops it. Unread notifications are
	// never age-pruned.
	readRetention = 7 * 24 * time.Hour
)

// Notification is one feed entry shown to the user as a toast.
type Notification struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Message     string      `json:"message"`
	Achievement Achievement `json:"achievement"`
	Read        bool        `json:"read"`
	CreatedAt   time.Time   `json:"created_at"`
	ReadAt      *time.Time  `json:"read_at,omitempty"`
}

// Feed is the in-process notification sink. It implements Observer and
// keeps a bounded per-user list, pruned lazily on every read.
type Feed struct {
	mu     sync.Mutex
	byUser map[uuid.UUID][]*Notification
	nowFn  func() time.Time
}

func NewFeed() *Feed {
	return &Feed{
		byUser: make(map[uuid.UUID][]*Notification),
		nowFn:  time.Now,
	}
}

// Notify appends a notification for the achievement. The ID carries no tier
// component, so later tiers for the same goal and date collapse into the
// first stored entry instead of stacking toasts.
func (f *Feed) Notify(userID uuid.UUID, a Achievement) error {
	id := fmt.Sprintf("%s_%s_%s", userID, a.GoalType, a.Date)

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, n := range f.byUser[userID] {
		if n.ID == id {
			return nil
		}
	}
	f.byUser[userID] = append(f.byUser[userID], &Notification{
		ID:          id,
		Title:       a.Title(),
		Message:     a.Message(),
		Achievement: a,
		CreatedAt:   f.nowFn(),
	})
	return nil
}

// Notifications returns the user's feed, newest first, pruning stale read
// entries and enforcing the per-user cap on the way out.
func (f *Feed) Notifications(userID uuid.UUID, unreadOnly bool) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pruneLocked(userID)

	out := make([]Notification, 0, len(f.byUser[userID]))
	for _, n := range f.byUser[userID] {
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, *n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// UnreadCount returns the number of unread notifications after pruning.
func (f *Feed) UnreadCount(userID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pruneLocked(userID)

	count := 0
	for _, n := range f.byUser[userID] {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkRead flags the notification as read. Unknown IDs are ignored.
func (f *Feed) MarkRead(userID uuid.UUID, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, n := range f.byUser[userID] {
		if n.ID == id {
			if !n.Read {
				n.Read = true
				now := f.nowFn()
				n.ReadAt = &now
			}
			return
		}
	}
}

// Clear drops every notification for the user.
func (f *Feed) Clear(userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byUser, userID)
}

// pruneLocked drops read notifications created more than readRetention
// ago, then enforces the cap keeping all unread entries plus the newest
// read ones. Callers hold f.mu.
func (f *Feed) pruneLocked(userID uuid.UUID) {
	list := f.byUser[userID]
	if len(list) == 0 {
		return
	}
	now := f.nowFn()

	kept := list[:0]
	for _, n := range list {
		if n.Read && now.Sub(n.CreatedAt) > readRetention {
			continue
		}
		kept = append(kept, n)
	}

	if len(kept) > maxPerUser {
		var unread, read []*Notification
		for _, n := range kept {
			if n.Read {
				read = append(read, n)
			} else {
				unread = append(unread, n)
			}
		}
		sort.SliceStable(read, func(i, j int) bool {
			return read[i].CreatedAt.After(read[j].CreatedAt)
		})
		room := maxPerUser - len(unread)
		if room < 0 {
			room = 0
		}
		if len(read) > room {
			read = read[:room]
		}
		kept = append(unread, read...)
	}

	if len(kept) == 0 {
		delete(f.byUser, userID)
		return
	}
	f.byUser[userID] = kept
}
