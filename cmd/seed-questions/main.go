package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/database"
	"github.com/stemsi/ept-backend/internal/importer"
	"github.com/stemsi/ept-backend/internal/logger"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	var (
		file       = flag.String("file", "", "JSON or YAML question file (loose format); empty seeds the built-in sample set")
		replace    = flag.Bool("replace", false, "Replace the whole bank instead of appending")
		level      = flag.String("level", "B2", "Default CEFR level for questions without one")
		section    = flag.String("section", string(model.SectionGrammar), "Default section for questions without one")
		candidates = flag.Int("demo-candidates", 0, "Also create N demo candidates with a recorded purchase")
	)
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)
	settingRepo := repository.NewSettingRepository(pool)

	// ─── Questions ─────────────────────────────────────────────────────
	var questions []model.Question
	if *file == "" {
		fmt.Println("=== Seeding built-in sample questions ===")
		questions = model.SampleQuestions()
	} else {
		fmt.Printf("=== Seeding questions from %s ===\n", *file)
		raw, err := importer.ReadRawFile(*file)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read question file")
		}
		res := importer.Normalize(raw, importer.Options{
			DefaultLevel:   model.ProficiencyLevel(strings.ToUpper(*level)),
			DefaultSection: model.Section(*section),
		})
		fmt.Printf("Normalized %d questions, dropped %d without text.\n", len(res.Questions), res.Dropped)
		questions = res.Questions
	}
	if len(questions) == 0 {
		fmt.Println("Nothing to seed.")
		return
	}

	start := 1
	if !*replace {
		if n, err := questionRepo.Count(ctx); err == nil {
			start = n + 1
		}
	}
	for i := range questions {
		questions[i].Number = start + i
	}
	if err := model.ValidateSet(questions); err != nil {
		log.Fatal().Err(err).Msg("Question set is invalid")
	}

	if *replace {
		err = questionRepo.ReplaceAll(ctx, questions)
	} else {
		err = questionRepo.Append(ctx, questions)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to store questions")
	}

	next := fmt.Sprintf("%d", start+len(questions))
	if err := settingRepo.UpsertMany(ctx, map[string]string{model.SettingNextQuestionNumber: next}); err != nil {
		log.Warn().Err(err).Msg("Failed to update next_question_number")
	}
	fmt.Printf("Stored %d questions (numbers %d..%d).\n", len(questions), start, start+len(questions)-1)

	// ─── Demo candidates ───────────────────────────────────────────────
	if *candidates <= 0 {
		return
	}
	fmt.Printf("\n=== Seeding %d demo candidates ===\n", *candidates)

	candidateRepo := repository.NewCandidateRepository(pool)
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	successCount := 0
	for i := 0; i < *candidates; i++ {
		c := &model.Candidate{
			Email:        fmt.Sprintf("candidate%d@example.com", i+1),
			FullName:     fmt.Sprintf("Demo Candidate %d", i+1),
			PasswordHash: string(hash),
		}
		if err := candidateRepo.Create(ctx, c); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				fmt.Printf("Skipping %s: already exists\n", c.Email)
				continue
			}
			fmt.Printf("Error creating %s: %v\n", c.Email, err)
			continue
		}
		if err := candidateRepo.RecordPurchase(ctx, c.ID, model.LevelB2, cfg.ExamPrice, time.Now()); err != nil {
			fmt.Printf("Error recording purchase for %s: %v\n", c.Email, err)
			continue
		}
		successCount++
	}

	fmt.Printf("\nSeed completed! Added %d/%d candidates (password: password123).\n", successCount, *candidates)
}
