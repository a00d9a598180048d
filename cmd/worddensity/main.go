// worddensity prints the most relevant topics of a web page or text file.
package main

import (
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/worddensity/cmd/worddensity/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
