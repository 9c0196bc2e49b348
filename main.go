package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/nasif-muhamed/learnerd-authoring/client"
	"github.com/nasif-muhamed/learnerd-authoring/config"
	"github.com/nasif-muhamed/learnerd-authoring/draft"
	"github.com/nasif-muhamed/learnerd-authoring/uploader"
	"github.com/nasif-muhamed/learnerd-authoring/wizard"
)

func main() {
	config.LoadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	tokens := client.NewTokenStore()
	tokens.Set(client.TokenPair{
		Access:  os.Getenv("ACCESS_TOKEN"),
		Refresh: os.Getenv("REFRESH_TOKEN"),
	})
	tokens.OnLogout(func() {
		logger.Warn("session force-closed by the server")
	})

	api := client.New(config.AppConfig.APIBaseURL, config.AppConfig.RequestTimeout, tokens, logger)

	journal, err := uploader.OpenJournal(config.AppConfig.JournalPath, config.AppConfig.UploadTTL)
	if err != nil {
		logger.Fatal("failed to open upload journal", zap.Error(err))
	}
	janitor, err := uploader.StartJanitor(journal, config.AppConfig.JanitorSpec, logger)
	if err != nil {
		logger.Fatal("failed to start upload janitor", zap.Error(err))
	}
	defer janitor.Stop()

	uploads := uploader.New(api,
		uploader.WithJournal(journal),
		uploader.WithRetry(config.AppConfig.ChunkRetries, config.AppConfig.ChunkBackoff),
		uploader.WithLogger(logger),
		uploader.WithProgress(func(p uploader.Progress) {
			logger.Info("upload progress",
				zap.String("state", string(p.State)),
				zap.Float64("fraction", p.Fraction))
		}))

	session := draft.NewSession(api, uploads, nil, logger)
	nav := wizard.NewNavigator(session, logger)

	// With COURSE_ID set, resume the draft and report where the wizard lands.
	if raw := os.Getenv("COURSE_ID"); raw != "" {
		courseID, err := strconv.Atoi(raw)
		if err != nil {
			logger.Fatal("invalid COURSE_ID", zap.String("value", raw))
		}
		if err := nav.Resume(context.Background(), courseID); err != nil {
			logger.Fatal("failed to resume draft", zap.Error(err))
		}
		course := session.Course()
		logger.Info("draft resumed",
			zap.Int("course_id", course.ID),
			zap.String("title", course.Title),
			zap.Int("wizard_step", int(nav.Current())),
			zap.Int("server_step", course.Step))
		return
	}

	logger.Info("authoring pipeline ready; set COURSE_ID to resume a draft")
}
