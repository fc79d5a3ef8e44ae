package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"llm-proxy/internal/app/commands"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func newApp() *cli.App {
	info := commands.BuildInfo{Version: Version, Commit: Commit, BuildDate: BuildDate}
	server := commands.GetServerCommand(info)

	return &cli.App{
		Name:     "llm-proxy",
		Usage:    "Reverse proxy for Claude and OpenAI APIs with server-held keys",
		Version:  Version,
		Commands: commands.GetCommands(info),
		// Без команды запускаем сервер
		Flags:  commands.ConfigFlags(),
		Action: server.Action,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
