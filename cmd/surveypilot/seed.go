package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"surveypilot/internal/app"
	"surveypilot/internal/model"
	"surveypilot/internal/repository"
	"surveypilot/internal/store/filestore"
)

var seedCmd = &cobra.Command{
	Use:   "seed <business.yaml>...",
	Short: "Load business configuration files into MongoDB",
	Long: `Upserts the rules, triggers, topic groups and questions of each business file
into MongoDB. The rule marked active in a file becomes the only active rule of
that business.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	client, err := app.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	store := repository.NewStore(ctx, client.Database(cfg.MongoDB), logger)

	for _, path := range args {
		files, err := filestore.Load(path)
		if err != nil {
			return err
		}
		for _, id := range files.Businesses() {
			bf, _ := files.Get(id)
			if err := seedBusiness(ctx, store, bf); err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			logger.Info("Seeded business",
				zap.String("businessId", id),
				zap.Int("rules", len(bf.Rules)),
				zap.Int("triggers", len(bf.Triggers)),
				zap.Int("topics", len(bf.Topics)),
				zap.Int("questions", len(bf.Questions)))
		}
	}
	return nil
}

func seedBusiness(ctx context.Context, store *repository.Store, bf *filestore.BusinessFile) error {
	bc := &model.BusinessConfig{
		BusinessID: bf.BusinessID,
		Rules:      bf.Rules,
		Triggers:   bf.Triggers,
		Topics:     bf.Topics,
	}
	if err := store.ImportConfig(ctx, bc, bf.Questions); err != nil {
		return err
	}

	for _, rule := range bc.Rules {
		if rule.IsActive {
			return store.RuleRepo.Activate(ctx, bf.BusinessID, rule.ID)
		}
	}
	return nil
}
