// The main package for the understat-crawler executable.
package main

import (
	"github.com/footdata/understat-crawler/cmd"
)

func main() {
	cmd.Execute()
}
