// Command floodctl runs flood simulations and inspects their artifacts from
// the command line. Every subcommand prints JSON to stdout.
//
// Usage:
//
//	floodctl simulate --scenario scenarios/storm.yaml
//	floodctl rainfall --total 80 --duration 2 --pattern chicago
//	floodctl report --rpt run/network.rpt --out run/network.out
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
