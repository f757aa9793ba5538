package adminclient

import (
	"sort"
	"sync"
)

// SessionViewModel merges the paginated REST history and the live stream for
// one session into a single de-duplicated, time-ordered message sequence plus
// the current canonical session snapshot.
//
// Snapshots are version-stamped by the server; a snapshot is applied only
// when its version is strictly newer than the one held, so a REST response
// and the broadcast for the same transition may arrive in either order
// without the older copy clobbering the newer one.
type SessionViewModel struct {
	mu       sync.Mutex
	session  ChatSession
	messages []Message
	index    map[string]int
}

func NewSessionViewModel(sessionID string) *SessionViewModel {
	return &SessionViewModel{
		session: ChatSession{SessionID: sessionID},
		index:   make(map[string]int),
	}
}

// ApplySession installs a snapshot if it is newer than the current one.
// Returns whether the snapshot was applied.
func (vm *SessionViewModel) ApplySession(snapshot ChatSession) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if snapshot.SessionID != vm.session.SessionID {
		return false
	}
	if snapshot.Version <= vm.session.Version {
		return false
	}
	vm.session = snapshot
	return true
}

// Session returns the latest canonical snapshot.
func (vm *SessionViewModel) Session() ChatSession {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.session
}

// CanSend reports whether the given operator may send into this session
// right now. Derived from the canonical snapshot on every call, never cached.
func (vm *SessionViewModel) CanSend(operatorID string) bool {
	return vm.Session().HandledBy(operatorID)
}

// ApplyHistory merges a REST history page. On a duplicate id the REST copy
// replaces the streamed one; it is authoritative for historical fields.
func (vm *SessionViewModel) ApplyHistory(page []Message) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	for _, message := range page {
		if message.SessionID != vm.session.SessionID {
			continue
		}
		if i, ok := vm.index[message.MessageID]; ok {
			vm.messages[i] = message
			continue
		}
		vm.messages = append(vm.messages, message)
	}
	vm.resort()
}

// ApplyStreamed merges one live message. A duplicate of an already-held
// message is dropped; the held copy stays.
func (vm *SessionViewModel) ApplyStreamed(message Message) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if message.SessionID != vm.session.SessionID {
		return false
	}
	if _, ok := vm.index[message.MessageID]; ok {
		return false
	}
	vm.messages = append(vm.messages, message)
	vm.resort()
	return true
}

// Messages returns the merged sequence ordered by (timestamp, id) ascending.
func (vm *SessionViewModel) Messages() []Message {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	out := make([]Message, len(vm.messages))
	copy(out, vm.messages)
	return out
}

// must hold vm.mu
func (vm *SessionViewModel) resort() {
	sort.SliceStable(vm.messages, func(i, j int) bool {
		a, b := vm.messages[i], vm.messages[j]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.MessageID < b.MessageID
	})
	for i, message := range vm.messages {
		vm.index[message.MessageID] = i
	}
}
