package transport

// Handlers bundles the engine callbacks a management server exposes. A nil
// handler makes the matching endpoint answer "not supported".
type Handlers struct {
    Status  StatusFunc
    Lookup  LookupFunc
    Reverse ReverseFunc
    Reload  ReloadFunc
}
