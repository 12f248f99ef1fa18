package main

import (
	"fmt"
	"os"

	"github.com/crucial707/alloc8/cmd/cli/assets"
	"github.com/crucial707/alloc8/cmd/cli/auth"
	"github.com/crucial707/alloc8/cmd/cli/root"
	"github.com/crucial707/alloc8/cmd/cli/users"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	assets.InitAssets(rootCmd)
	users.InitUsers(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
