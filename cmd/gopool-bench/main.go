// Command gopool-bench drives a gopool.Pool under synthetic load so its
// admission-bound and ordering behavior can be observed from the outside.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
