package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// BuildInfo заполняется через -ldflags в cmd/llm-proxy
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// GetCommands возвращает все доступные команды
func GetCommands(info BuildInfo) []*cli.Command {
	return []*cli.Command{
		GetServerCommand(info),
		GetVersionCommand(info),
		GetCheckConfigCommand(),
	}
}

// GetVersionCommand выводит версию
func GetVersionCommand(info BuildInfo) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version",
		Action: func(c *cli.Context) error {
			w := c.App.Writer
			fmt.Fprintln(w, "LLM Proxy")
			fmt.Fprintf(w, "Version:    %s\n", info.Version)
			fmt.Fprintf(w, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(w, "Build Date: %s\n", info.BuildDate)
			return nil
		},
	}
}

// GetCheckConfigCommand проверяет конфигурацию без запуска сервера
func GetCheckConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "check-config",
		Usage: "Load and validate configuration, print it with secrets masked",
		Flags: ConfigFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if err := cfg.Validate(); err != nil {
				return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 1)
			}

			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return err
			}
			fmt.Fprint(c.App.Writer, string(out))
			return nil
		},
	}
}
