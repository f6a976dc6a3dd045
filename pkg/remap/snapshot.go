package remap

import (
    "time"

    "github.com/phuslu/lru"

    "github.com/amirimatin/go-remap/pkg/table"
)

type revKey struct {
    peer table.PeerID
    to   table.MsgID
}

type revHit struct {
    from table.MsgID
    ok   bool
}

// snapshot is a published table. tbl is sorted and never modified after
// publication; rev, when present, caches reverse lookups for this tbl only.
type snapshot struct {
    tbl      *table.Table
    rev      *lru.LRUCache[revKey, revHit]
    loadedAt time.Time
}

func newSnapshot(t *table.Table, cacheSize int) *snapshot {
    s := &snapshot{tbl: t, loadedAt: time.Now()}
    if cacheSize > 0 {
        // lookups are already serialized by the guard, one shard is enough
        s.rev = lru.NewLRUCache[revKey, revHit](cacheSize, lru.WithShards[revKey, revHit](1))
    }
    return s
}

func (s *snapshot) forward(peer table.PeerID, from table.MsgID) table.MsgID {
    active := s.tbl.Active()
    if i := table.Search(active, peer, from); i < len(active) {
        return active[i].To
    }
    if s.tbl.Default == table.PolicySend {
        return from
    }
    return 0
}

// reverse returns the mapped id and the metrics result label.
func (s *snapshot) reverse(peer table.PeerID, to table.MsgID) (table.MsgID, string) {
    key := revKey{peer: peer, to: to}
    if s.rev != nil {
        if h, ok := s.rev.Get(key); ok {
            if h.ok { return h.from, "cached" }
            return to, "cached"
        }
    }
    from, ok := table.Reverse(s.tbl.Active(), peer, to)
    if s.rev != nil {
        s.rev.Set(key, revHit{from: from, ok: ok})
    }
    if !ok { return to, "miss" }
    return from, "hit"
}
