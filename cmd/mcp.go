package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"contextd/internal/agentproto"
	"contextd/internal/query"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP stdio server exposing search_context and get_status",
	RunE:  runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(flagConfigPath)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	emb, err := loadEmbedder(cfg)
	if err != nil {
		return err
	}
	defer emb.Close()

	stats, err := st.Stats()
	if err != nil {
		return &storeError{fmt.Errorf("read store stats: %w", err)}
	}
	if stats.FileCount == 0 {
		fmt.Println("warning: index is empty, run 'contextd index' first")
	}

	engine := query.New(query.Config{
		Store:        st,
		Embedder:     emb,
		HybridWeight: cfg.Search.HybridWeight,
		EnableCache:  cfg.Search.EnableCache,
	})

	srv := agentproto.New(engine, st, cfg.Storage.ModelType, cfg.ModelDim())
	return srv.Serve()
}
