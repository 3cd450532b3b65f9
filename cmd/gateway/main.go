// Command gateway runs the chat-platform gateway: the RPC server, the event
// publisher, and the observability HTTP endpoint, all behind one process.
package main

import (
	"fmt"
	"os"

	"github.com/Globidev/globibot-rs/cmd/gateway/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
