package remap

import (
    "fmt"

    "github.com/amirimatin/go-remap/pkg/filter"
    obsmetrics "github.com/amirimatin/go-remap/pkg/observability/metrics"
    "github.com/amirimatin/go-remap/pkg/table"
)

// FilterRecv remaps a message received from ctx.PeerID.
func (e *Engine) FilterRecv(msg filter.Message, ctx filter.Context) (filter.Outcome, error) {
    return e.forward("recv", msg, ctx)
}

// FilterSend remaps a message about to be sent to ctx.PeerID. It is the same
// algorithm as FilterRecv; the bridge calls them from different paths.
func (e *Engine) FilterSend(msg filter.Message, ctx filter.Context) (filter.Outcome, error) {
    return e.forward("send", msg, ctx)
}

// forward rewrites the message id through the table. A matching entry with a
// zero destination, or no match under PolicyIgnore, suppresses the message.
// On error the outcome is Suppressed and the message is unchanged.
func (e *Engine) forward(dir string, msg filter.Message, ctx filter.Context) (filter.Outcome, error) {
    if !e.ready.Load() {
        obsmetrics.ErrorsTotal.WithLabelValues(dir).Inc()
        return filter.Suppressed, ErrNotReady
    }
    from, err := msg.MsgID()
    if err != nil {
        e.report(filter.EIDRemap, filter.SeverityError, "unable to get msgid: %v", err)
        obsmetrics.ErrorsTotal.WithLabelValues(dir).Inc()
        return filter.Suppressed, fmt.Errorf("%w: get: %w", ErrMsgID, err)
    }
    to, err := e.resolve(ctx.PeerID, from)
    if err != nil {
        obsmetrics.ErrorsTotal.WithLabelValues(dir).Inc()
        return filter.Suppressed, err
    }
    if to == 0 {
        obsmetrics.ForwardTotal.WithLabelValues(dir, filter.Suppressed.String()).Inc()
        return filter.Suppressed, nil
    }
    if err := msg.SetMsgID(to); err != nil {
        e.report(filter.EIDRemap, filter.SeverityError, "unable to set msgid %s: %v", to, err)
        obsmetrics.ErrorsTotal.WithLabelValues(dir).Inc()
        return filter.Suppressed, fmt.Errorf("%w: set: %w", ErrMsgID, err)
    }
    obsmetrics.ForwardTotal.WithLabelValues(dir, filter.Forwarded.String()).Inc()
    return filter.Forwarded, nil
}

// Resolve returns the identifier a message from peer with id would be
// forwarded as, or zero when it would be suppressed. It takes the guard but
// touches no message and records no metrics.
func (e *Engine) Resolve(peer table.PeerID, id table.MsgID) (table.MsgID, error) {
    if !e.ready.Load() { return 0, ErrNotReady }
    return e.resolve(peer, id)
}

func (e *Engine) resolve(peer table.PeerID, from table.MsgID) (table.MsgID, error) {
    if err := e.guard.Take(); err != nil {
        e.report(filter.EIDRemap, filter.SeverityError, "unable to take mutex: %v", err)
        return 0, fmt.Errorf("%w: take: %w", ErrGuard, err)
    }
    var to table.MsgID
    snap := e.snap.Load()
    if snap != nil { to = snap.forward(peer, from) }
    if err := e.guard.Give(); err != nil {
        e.report(filter.EIDRemap, filter.SeverityError, "unable to give mutex: %v", err)
        return 0, fmt.Errorf("%w: give: %w", ErrGuard, err)
    }
    if snap == nil { return 0, ErrNotReady }
    return to, nil
}

// RemapMsgID maps id back to the source identifier of the first entry for
// ctx.PeerID whose destination is id. Without a match id is returned as is;
// the default policy does not apply in this direction.
func (e *Engine) RemapMsgID(id table.MsgID, ctx filter.Context) table.MsgID {
    if !e.ready.Load() { return id }
    if err := e.guard.Take(); err != nil {
        e.report(filter.EIDRemap, filter.SeverityError, "unable to take mutex: %v", err)
        obsmetrics.ErrorsTotal.WithLabelValues("reverse").Inc()
        return id
    }
    out, result := id, "miss"
    snap := e.snap.Load()
    if snap != nil { out, result = snap.reverse(ctx.PeerID, id) }
    if err := e.guard.Give(); err != nil {
        e.report(filter.EIDRemap, filter.SeverityError, "unable to give mutex: %v", err)
        obsmetrics.ErrorsTotal.WithLabelValues("reverse").Inc()
        return id
    }
    obsmetrics.ReverseTotal.WithLabelValues(result).Inc()
    return out
}
