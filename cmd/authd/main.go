// Command authd runs the authorization server.
package main

import (
	"os"

	"github.com/MrEthical07/authcore/cmd/authd/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
