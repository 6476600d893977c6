package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/database"
	"github.com/stemsi/exstem-attempts/internal/logger"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/repository"
)

func main() {
	var (
		examID    int64
		title     string
		minutes   int
		questions int
	)
	flag.Int64Var(&examID, "exam", 0, "Append questions to this exam instead of creating one")
	flag.StringVar(&title, "title", "Ujian Coba Fisika XII", "Title of the new exam")
	flag.IntVar(&minutes, "minutes", 90, "Duration of the new exam in minutes")
	flag.IntVar(&questions, "questions", 40, "Number of questions to add")
	flag.Parse()

	if questions <= 0 || minutes <= 0 {
		fmt.Println("Usage: seed-exams [-exam id] [-title t] [-minutes n] [-questions n]")
		flag.PrintDefaults()
		return
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
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

	examRepo := repository.NewExamRepository(pool)
	catalog := repository.NewCachedExamCatalog(examRepo, rdb, cfg.ExamCacheTTL, log)

	startOrder := 1
	if examID > 0 {
		exam, err := examRepo.GetExam(ctx, examID)
		if err != nil {
			log.Fatal().Err(err).Int64("exam_id", examID).Msg("Exam not found")
		}
		ids, err := examRepo.ListQuestionIDs(ctx, examID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list questions")
		}
		startOrder = len(ids) + 1
		fmt.Printf("Appending to exam %d (%s), %d existing questions\n", exam.ID, exam.Title, len(ids))
	} else {
		exam := &model.Exam{Title: title, DurationSeconds: minutes * 60}
		if err := examRepo.CreateExam(ctx, exam); err != nil {
			log.Fatal().Err(err).Msg("Failed to create exam")
		}
		examID = exam.ID
		fmt.Printf("Created exam %d (%s, %d minutes)\n", exam.ID, exam.Title, minutes)
	}

	batch := make([]model.Question, 0, questions)
	for i := 0; i < questions; i++ {
		order := startOrder + i
		batch = append(batch, model.Question{
			ExamID:   examID,
			Text:     fmt.Sprintf("Soal nomor %d", order),
			OrderNum: order,
		})
	}
	if err := examRepo.AddQuestions(ctx, batch); err != nil {
		log.Fatal().Err(err).Msg("Failed to add questions")
	}

	// The catalog caches the question id set; drop it so the new ids are visible.
	if err := catalog.Invalidate(ctx, examID); err != nil {
		log.Warn().Err(err).Msg("Cache invalidation failed")
	}

	fmt.Printf("\nSeed completed! Exam %d now has questions %d..%d.\n",
		examID, batch[0].ID, batch[len(batch)-1].ID)
}
