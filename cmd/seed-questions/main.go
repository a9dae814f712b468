package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// seedQuestion is one entry of the seed file.
type seedQuestion struct {
	Text               string   `json:"text" binding:"required,max=2000"`
	Options            []string `json:"options" binding:"min=2,max=10,dive,required"`
	CorrectOptionIndex int      `json:"correct_option_index" binding:"gte=0"`
}

func main() {
	var offer, file string
	flag.StringVar(&offer, "offer", "", "Offer ID (UUID)")
	flag.StringVar(&file, "file", "", "Path to a JSON array of {text, options, correct_option_index}")
	flag.Parse()
	validator.Setup()

	offerID, err := uuid.Parse(offer)
	if err != nil || file == "" {
		fmt.Println("Usage: seed-questions -offer <uuid> -file <questions.json>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	questions, err := loadQuestions(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	questionRepo := repository.NewQuestionRepository(pool)
	questionBank := service.NewQuestionBankService(questionRepo, rdb, 0, log)

	fmt.Printf("=== Seeding %d questions for offer %s ===\n", len(questions), offerID)

	if err := questionRepo.ReplaceForOffer(ctx, offerID, questions); err != nil {
		log.Fatal().Err(err).Msg("Failed to store questions")
	}
	if err := questionBank.Invalidate(ctx, offerID); err != nil {
		log.Warn().Err(err).Msg("Failed to drop cached question bank")
	}

	for _, q := range questions {
		fmt.Printf("  #%d %s (%d options)\n", q.OrderNum, q.ID, len(q.Options))
	}
	fmt.Println("Done.")
}

func loadQuestions(path string) ([]model.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []seedQuestion
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s contains no questions", path)
	}

	questions := make([]model.Question, 0, len(entries))
	for i, e := range entries {
		if fields := validator.Struct(&e); fields != nil {
			return nil, fmt.Errorf("question %d: %v", i+1, fields)
		}
		if e.CorrectOptionIndex >= len(e.Options) {
			return nil, fmt.Errorf("question %d: correct_option_index out of range", i+1)
		}
		questions = append(questions, model.Question{
			Text:               e.Text,
			Options:            e.Options,
			CorrectOptionIndex: e.CorrectOptionIndex,
			OrderNum:           i + 1,
		})
	}
	return questions, nil
}
