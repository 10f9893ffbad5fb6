// Lens is a read-only data-access layer for chain data: it assembles
// decoded blocks, enriched transactions, statistics, and search results
// from a PostgREST-style table service and serves them over HTTP.
package main

import (
	"github.com/manifest-network/lens/cmd"
)

func main() {
	cmd.Execute()
}
