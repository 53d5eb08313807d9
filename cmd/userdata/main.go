// Command userdata joins the RevenueCat and OneSignal exports by user id
// and serves the merged users over HTTP.
//
//	userdata serve              # HTTP API on $PORT (default 5001)
//	userdata merge --pretty     # print the merged users once and exit
//
// Configuration comes from the environment (and an optional .env file);
// command-line flags override it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
