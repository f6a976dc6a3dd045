package diag

import "fmt"

func sprintf(format string, args ...any) string {
    if len(args) == 0 { return format }
    return fmt.Sprintf(format, args...)
}
