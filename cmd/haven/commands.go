package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"haven/internal/api"
	"haven/internal/cache"
	"haven/internal/composer"
	"haven/internal/config"
	"haven/internal/db"
	"haven/internal/knowledge"
	"haven/internal/llm"
	"haven/internal/memory"
	"haven/internal/vector"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "haven",
	Short:         "Personalized mental health support engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to config file")
	rootCmd.AddCommand(serveCmd, initKBCmd, importCmd, cleanupCmd)

	importCmd.Flags().String("url", "", "URL to import")
	importCmd.Flags().String("pdf", "", "local PDF file to import")
	importCmd.Flags().String("title", "", "item title (PDF imports)")
	importCmd.Flags().String("kind", string(knowledge.KindInformation), "knowledge kind")
	importCmd.Flags().String("source", "", "attribution source")
}

// services bundles everything the commands wire up from config.
type services struct {
	cfg      *config.Config
	memories *memory.Service
	kb       *knowledge.Base
	engine   *composer.Engine
}

// buildServices connects storage and the optional collaborators. A
// missing redis, qdrant, embedding or generator section just disables
// that collaborator.
func buildServices(cfg *config.Config) (*services, error) {
	if err := db.Init(cfg); err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	var index vector.Index
	if cfg.Qdrant.URL != "" {
		qi, err := vector.NewQdrantIndex(cfg.Qdrant.URL, cfg.Qdrant.CollectionPrefix, cfg.Qdrant.APIKey, cfg.Embedding.Dimension)
		if err != nil {
			log.Printf("[Main] WARNING: qdrant unavailable, vector retrieval disabled: %v", err)
		} else {
			index = qi
		}
	}

	var embedder vector.EmbeddingProvider
	if cfg.Embedding.URL != "" {
		embedder = vector.NewEmbedder(cfg.Embedding.URL, cfg.Embedding.Model)
	}

	var searchCache *cache.Cache
	if cfg.Redis.Addr != "" {
		searchCache = cache.New(cache.NewClient(cfg), time.Duration(cfg.Redis.TTLSeconds)*time.Second)
	}

	var generator llm.Generator
	if cfg.Generator.URL != "" {
		generator = llm.NewClient(cfg)
	}

	memories := memory.NewService(db.DB, index, embedder)
	kb := knowledge.NewBase(db.DB, index, embedder, searchCache, cfg.Engine.ChunkSize, cfg.Engine.ChunkOverlap)
	engine := composer.NewEngine(memories, kb, generator, rand.New(rand.NewSource(time.Now().UnixNano())),
		cfg.Engine.MemoryRetrieveLimit, cfg.Engine.KnowledgeMaxResults)

	return &services{cfg: cfg, memories: memories, kb: kb, engine: engine}, nil
}

func loadServices() (*services, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return buildServices(cfg)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP support service",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices()
		if err != nil {
			return err
		}

		// The seed corpus must exist before the first request.
		if err := svc.kb.Seed(context.Background()); err != nil {
			log.Printf("[Main] WARNING: knowledge seeding failed: %v", err)
		}

		router := api.SetupRouter(svc.cfg, svc.engine)
		addr := fmt.Sprintf("%s:%d", svc.cfg.Server.Host, svc.cfg.Server.Port)
		log.Printf("[Main] Listening on %s", addr)
		return router.Run(addr)
	},
}

var initKBCmd = &cobra.Command{
	Use:   "init-kb",
	Short: "Seed the knowledge base with the curated corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices()
		if err != nil {
			return err
		}
		if err := svc.kb.Seed(context.Background()); err != nil {
			return err
		}
		fmt.Println("Knowledge base initialized")
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a document into the knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		urlStr, _ := cmd.Flags().GetString("url")
		pdfPath, _ := cmd.Flags().GetString("pdf")
		title, _ := cmd.Flags().GetString("title")
		kind, _ := cmd.Flags().GetString("kind")
		source, _ := cmd.Flags().GetString("source")

		if (urlStr == "") == (pdfPath == "") {
			return fmt.Errorf("exactly one of --url or --pdf is required")
		}
		if pdfPath != "" {
			if _, err := os.Stat(pdfPath); err != nil {
				return fmt.Errorf("cannot read %s: %w", pdfPath, err)
			}
		}

		svc, err := loadServices()
		if err != nil {
			return err
		}
		importer := knowledge.NewImporter(svc.kb)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		var item *knowledge.Item
		if urlStr != "" {
			item, err = importer.ImportURL(ctx, urlStr, knowledge.Kind(kind), source)
		} else {
			item, err = importer.ImportPDF(ctx, pdfPath, title, knowledge.Kind(kind), source)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Imported: %s (id %d)\n", item.Title, item.ID)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Deactivate expired memories",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices()
		if err != nil {
			return err
		}
		n, err := svc.memories.ExpireStale(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Deactivated %d expired memories\n", n)
		return nil
	},
}
