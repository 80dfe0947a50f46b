package cache

import (
	"github.com/nhle/contacts/internal/model"
	"github.com/nhle/contacts/internal/normalize"
)

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// ContactsFetched delivers one page of a folder's contacts. The first page
// (Offset 0) replaces the bucket, later pages extend it. Done marks the
// folder as fully fetched.
type ContactsFetched struct {
	Folder   string
	Offset   int
	Contacts []model.Contact
	Done     bool
}

// FoldersFetched replaces the folder list. Placeholders of folders still
// being created are kept.
type FoldersFetched struct {
	Folders []model.ContactsFolder
}

// Pending starts an operation.
type Pending struct {
	RequestID string
	Op        Op
}

// Fulfilled completes an operation successfully.
type Fulfilled struct {
	RequestID string
	Result    Result
}

// Rejected completes an operation with an error. The cache slice captured
// at Pending is restored.
type Rejected struct {
	RequestID string
	Err       error
}

// Synced applies a change notification.
type Synced struct {
	Delta normalize.Delta
}

// SessionReset starts a new notification session; sequence numbers begin
// again.
type SessionReset struct{}

// Restored replaces the whole cache with a persisted state.
type Restored struct {
	State State
}

func (ContactsFetched) isEvent() {}
func (FoldersFetched) isEvent()  {}
func (Pending) isEvent()         {}
func (Fulfilled) isEvent()       {}
func (Rejected) isEvent()        {}
func (Synced) isEvent()          {}
func (SessionReset) isEvent()    {}
func (Restored) isEvent()        {}

// Reduce returns the state after ev. s is left untouched.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case ContactsFetched:
		return reduceContactsFetched(s, ev)
	case FoldersFetched:
		return reduceFoldersFetched(s, ev)
	case Pending:
		return reducePending(s, ev)
	case Fulfilled:
		return reduceFulfilled(s, ev)
	case Rejected:
		return reduceRejected(s, ev)
	case Synced:
		return reduceSynced(s, ev.Delta)
	case SessionReset:
		out := s.clone()
		out.LastSeq = 0
		return out
	case Restored:
		out := ev.State.clone()
		out.Pending = make(map[string]PendingOp)
		out.PendingActions = false
		return out
	}
	return s
}

func reduceContactsFetched(s State, ev ContactsFetched) State {
	out := s.clone()
	if ev.Offset == 0 {
		out.Contacts[ev.Folder] = append([]model.Contact{}, ev.Contacts...)
	} else {
		addContacts(&out, ev.Folder, ev.Contacts...)
	}
	if ev.Done {
		out.Status[ev.Folder] = true
	}
	return out
}

func reduceFoldersFetched(s State, ev FoldersFetched) State {
	out := s.clone()
	folders := append([]model.ContactsFolder{}, ev.Folders...)
	fetched := make(map[string]bool, len(folders))
	for _, f := range folders {
		fetched[f.ID] = true
	}
	for _, f := range s.Folders {
		if f.Local && !fetched[f.ID] {
			folders = append(folders, f)
		}
	}
	out.Folders = folders
	return out
}

func reducePending(s State, ev Pending) State {
	if ev.Op == nil {
		return s
	}
	out := s.clone()
	out.Pending[ev.RequestID] = PendingOp{
		Kind:     ev.Op.Kind(),
		Op:       ev.Op,
		Snapshot: takeSnapshot(s, ev.Op.scope(s)),
	}
	ev.Op.apply(&out)
	out.PendingActions = true
	return out
}

func reduceFulfilled(s State, ev Fulfilled) State {
	p, ok := s.Pending[ev.RequestID]
	if !ok {
		return s
	}
	out := s.clone()
	p.Op.reconcile(&out, ev.Result)
	delete(out.Pending, ev.RequestID)
	out.PendingActions = len(out.Pending) > 0
	return out
}

func reduceRejected(s State, ev Rejected) State {
	p, ok := s.Pending[ev.RequestID]
	if !ok {
		return s
	}
	out := s.clone()
	p.Snapshot.restore(&out)
	delete(out.Pending, ev.RequestID)
	out.PendingActions = len(out.Pending) > 0
	return out
}
