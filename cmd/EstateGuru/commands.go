package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"EstateGuru/internal/config"
	"EstateGuru/internal/modules/estate/application/dto/request"

	"github.com/spf13/cobra"
)

var (
	ingestLocality     string
	ingestPropertyType string
	ingestForce        bool
	askMode            string
	askAgentType       string
	askTopK            int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Chunk, embed and index text or PDF documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		for _, path := range args {
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			res, err := app.IngestSvc.IngestDocument(cmd.Context(), request.IngestDocumentRequest{
				Filename:     filepath.Base(path),
				Content:      string(raw),
				Locality:     ingestLocality,
				PropertyType: ingestPropertyType,
				Force:        ingestForce,
			})
			if err != nil {
				return fmt.Errorf("ingest %s: %w", path, err)
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
		}
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question (auto routing by default)",
	Example: `  estateguru ask "2 BHK flats in Baner under 90 lakh"
  estateguru ask --mode knowledge "What is the metro status in Hinjewadi?"
  estateguru ask --mode agent --agent rent "Find a furnished 1 BHK to rent in Kharadi"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		// 命令行单次问答：ingest 与 ask 不在同一进程时内存向量库为空
		if config.GetConfig().VectorConfig.Backend == "memory" {
			if _, err := app.IngestSvc.IngestDirectory(cmd.Context(), config.GetConfig().MainConfig.UploadDir); err != nil {
				return err
			}
		}

		var out any
		switch askMode {
		case "knowledge":
			out, err = app.QuerySvc.SubmitKnowledgeQuery(cmd.Context(), request.KnowledgeQueryRequest{Query: args[0], TopK: askTopK})
		case "agent":
			out, err = app.QuerySvc.SubmitAgentQuery(cmd.Context(), request.AgentQueryRequest{AgentType: askAgentType, Message: args[0]})
		case "auto", "":
			out, err = app.QuerySvc.SubmitAutoQuery(cmd.Context(), request.AutoQueryRequest{Query: args[0], TopK: askTopK})
		default:
			return fmt.Errorf("unknown mode %q (knowledge, agent, auto)", askMode)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex [dir]",
	Short: "Ingest every text or PDF document in a directory, skipping unchanged ones",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		dir := config.GetConfig().MainConfig.UploadDir
		if len(args) == 1 {
			dir = args[0]
		}
		report, err := app.IngestSvc.IngestDirectory(cmd.Context(), dir)
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestLocality, "locality", "", "locality tag; detected from the text when empty")
	ingestCmd.Flags().StringVar(&ingestPropertyType, "property-type", "", "property type tag")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "re-index even when the content hash is unchanged")

	askCmd.Flags().StringVar(&askMode, "mode", "auto", "knowledge, agent or auto")
	askCmd.Flags().StringVar(&askAgentType, "agent", "buy", "agent type for --mode agent (buy, rent)")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "number of passages to retrieve")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
