package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uplinkbot/uplink/internal/version"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "uplink",
		Short: "Telegram file relay bridging a public bot to Gofile.io",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the relay",
		Run: func(_ *cobra.Command, _ []string) {
			runServe()
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.GetInfo())
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
