package table

// Search returns the index of the entry matching (peer, from) in the sorted
// slice entries, or len(entries) when there is none.
func Search(entries []Entry, peer PeerID, from MsgID) int {
    key := Entry{Peer: peer, From: from}
    lo, hi := 0, len(entries)-1
    for lo <= hi {
        mid := int(uint(lo+hi) >> 1)
        switch c := Compare(key, entries[mid]); {
        case c == 0:
            return mid
        case c > 0:
            lo = mid + 1
        default:
            hi = mid - 1
        }
    }
    return len(entries)
}

// Reverse scans entries for the first one of peer whose To equals to and
// returns its From. Order is irrelevant; the scan is linear.
func Reverse(entries []Entry, peer PeerID, to MsgID) (MsgID, bool) {
    for _, e := range entries {
        if e.Peer == peer && e.To == to { return e.From, true }
    }
    return 0, false
}
