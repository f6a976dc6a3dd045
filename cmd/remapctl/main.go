package main

import (
    "log"

    "github.com/spf13/cobra"

    remapcli "github.com/amirimatin/go-remap/pkg/cli"
)

func main() {
    if err := newRoot().Execute(); err != nil {
        log.Fatal(err)
    }
}

func newRoot() *cobra.Command {
    root := &cobra.Command{
        Use:           "remapctl",
        Short:         "go-remap engine and table CLI",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    remapcli.AddAll(root)
    return root
}
