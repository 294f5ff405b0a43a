// Command outproc-gatewayd drives a single remote module through its
// create/start/run/destroy lifecycle.
package main

import "github.com/sentinelgate/outproc-gateway/cmd/outproc-gatewayd/cmd"

func main() {
	cmd.Execute()
}
