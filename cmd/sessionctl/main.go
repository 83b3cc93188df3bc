package main

import (
	"fmt"
	"os"

	"github.com/sandeepkv93/chat-session-client/internal/tools/sessionctl"
)

func main() {
	if err := sessionctl.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sessionctl:", err)
		os.Exit(1)
	}
}
