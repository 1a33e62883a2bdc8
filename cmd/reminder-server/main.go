package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/xiaozhi-community/mcp-pipe/reminder"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:  "reminder-server",
		Usage: "in-memory reminder MCP server speaking stdio",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging.",
			},
		},
		Action: func(c *cli.Context) error {
			// Logs must go to stderr: stdout carries the MCP protocol.
			zcfg := zap.NewDevelopmentConfig()
			zcfg.OutputPaths = []string{"stderr"}
			if !c.Bool("debug") {
				zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
			}
			logger, err := zcfg.Build()
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			defer logger.Sync()

			return reminder.NewServer(version, logger.Sugar()).ServeStdio()
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
