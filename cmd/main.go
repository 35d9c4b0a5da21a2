package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rag-backend/internal/config"
	"rag-backend/internal/helper"
)

const configFilePath = "./configs/config.yaml"

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rag-backend",
	Short: "Retrieval-augmented question answering and missing-value filling",
	Long: `rag-backend embeds documents and tables into a vector store, answers
questions from the retrieved context and fills missing cells of tabular data.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		helper.SetupLogger(cfg.Log.Level, cfg.Log.JSON)
		log.Debug().Interface("config", cfg).Msg("Loaded config")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configFilePath, "path to the YAML config file")

	askCmd.Flags().StringVarP(&askSource, "filename", "f", "", "restrict retrieval to one ingested file")
	fillCmd.Flags().StringVar(&fillFormat, "format", "", "output format, csv or xlsx (default from config)")

	rootCmd.AddCommand(serveCmd, embedCmd, askCmd, fillCmd, exportCmd, importCmd, resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
