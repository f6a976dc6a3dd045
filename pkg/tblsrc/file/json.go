package file

import (
    "encoding/json"

    "github.com/amirimatin/go-remap/pkg/table"
)

func jsonImage(t *table.Table) ([]byte, error) {
    b, err := json.MarshalIndent(t, "", "  ")
    if err != nil { return nil, err }
    return append(b, '\n'), nil
}
