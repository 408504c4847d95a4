// cc-sessions is the workflow-enforcement CLI sitting between an AI
// coding host agent and a developer's project.
package main

import (
	"os"

	"github.com/xcawolfe-amzn/cc-sessions/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
