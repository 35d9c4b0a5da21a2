package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rag-backend/internal/api"
	"rag-backend/internal/helper"
	"rag-backend/internal/rag"
	"rag-backend/internal/session"
)

var (
	askSource  string
	fillFormat string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var embedCmd = &cobra.Command{
	Use:   "embed <file>",
	Short: "Parse a document or table and add it to the vector store",
	Args:  cobra.ExactArgs(1),
	RunE:  runEmbed,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the ingested content",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var fillCmd = &cobra.Command{
	Use:   "fill <file>",
	Short: "Infer the missing cells of a CSV or XLSX file",
	Long: `Infer every cell marked with the missing sentinel and write
<name>_completed.<format> next to the input, with a Reasoning column.`,
	Args: cobra.ExactArgs(1),
	RunE: runFill,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the chromem collection to an encrypted file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			m, err := a.requireChromem()
			if err != nil {
				return err
			}
			return m.Export(ctx)
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the chromem collection from an encrypted file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			m, err := a.requireChromem()
			if err != nil {
				return err
			}
			if err := m.Import(ctx); err != nil {
				return err
			}
			log.Info().Int("documents", m.Count()).Msg("Imported collection")
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every document of the chromem collection and its source list",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			m, err := a.requireChromem()
			if err != nil {
				return err
			}
			return m.Reset()
		})
	},
}

func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := helper.CreateFolder(cfg.Server.TempFolder); err != nil {
		return err
	}

	srv := api.NewServer(api.Deps{
		Asker:    a.rag,
		Ingester: a.ingester,
		Sources:  a.store,
		Filler:   a.filler,
		Sessions: session.New(cfg.Server.SessionLifetime),
	}, cfg)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     srv,
		ReadTimeout: 60 * time.Second,
		// Filling a table can take many model calls.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.ingester.IngestFile(ctx, args[0], "")
	if err != nil {
		return fmt.Errorf("error embedding %s: %w", args[0], err)
	}
	fmt.Printf("Embedded %s: %d chunks added.\n", args[0], n)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	response, err := a.rag.Ask(ctx, rag.Request{Question: args[0], Source: askSource})
	if err != nil {
		return fmt.Errorf("error querying: %w", err)
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Source)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
	return nil
}

func runFill(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	format := cfg.Fill.OutputFormat
	if fillFormat != "" {
		format = fillFormat
	}

	outPath, report, err := a.filler.ReconstructFile(ctx, args[0], format)
	if outPath != "" {
		fmt.Printf("Completed file: %s\n", outPath)
		helper.PrettyPrint(report)
	}
	return err
}
