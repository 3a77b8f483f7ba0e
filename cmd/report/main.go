package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/database"
	"github.com/stemsi/ept-backend/internal/logger"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/repository"
)

func main() {
	days := flag.Int("days", 14, "Number of days of sales to show")
	recent := flag.Int("recent", 20, "Number of recent outcomes to show")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	dashboardRepo := repository.NewDashboardRepository(pool)
	outcomeRepo := repository.NewOutcomeRepository(pool)

	color.Cyan("\n=== English Proficiency Test Report ===")

	summary, err := dashboardRepo.GetSummary(ctx)
	if err != nil {
		color.Red("Failed to load summary: %v", err)
		os.Exit(1)
	}
	printSummary(summary)

	if sales, err := dashboardRepo.GetDailySales(ctx, *days); err != nil {
		color.Red("Failed to load sales: %v", err)
	} else {
		printSales(sales)
	}

	if dist, err := dashboardRepo.GetLevelDistribution(ctx); err != nil {
		color.Red("Failed to load level distribution: %v", err)
	} else {
		printLevels(dist)
	}

	if rows, err := outcomeRepo.ListRecent(ctx, *recent); err != nil {
		color.Red("Failed to load outcomes: %v", err)
	} else {
		printOutcomes(rows)
	}
}

func printSummary(s model.AdminDashboard) {
	color.Yellow("\nSummary")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.AppendBulk([][]string{
		{"Candidates", strconv.Itoa(s.TotalCandidates)},
		{"Purchases", strconv.Itoa(s.TotalPurchases)},
		{"Revenue", fmt.Sprintf("%.2f", s.TotalRevenue)},
		{"Exams completed", strconv.Itoa(s.ExamsCompleted)},
		{"Passed", strconv.Itoa(s.ExamsPassed)},
		{"Failed", strconv.Itoa(s.ExamsFailed)},
		{"Pass rate", fmt.Sprintf("%.1f%%", s.PassRate)},
		{"Average score", fmt.Sprintf("%.1f", s.AverageScore)},
		{"Annulled by admin", strconv.Itoa(s.ForcedOutcomes)},
		{"Question bank", strconv.Itoa(s.QuestionBankSize)},
	})
	table.Render()
}

func printSales(sales []repository.DailySales) {
	color.Yellow("\nDaily Sales")
	if len(sales) == 0 {
		fmt.Println("No purchases in this period.")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Day", "Purchases", "Revenue"})
	for _, d := range sales {
		table.Append([]string{
			d.Day.Format("2006-01-02"),
			strconv.Itoa(d.Purchases),
			fmt.Sprintf("%.2f", d.Revenue),
		})
	}
	table.Render()
}

func printLevels(dist map[model.ProficiencyLevel]int) {
	color.Yellow("\nCertified Levels")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Level", "Candidates"})
	for _, lvl := range model.AllLevels {
		table.Append([]string{string(lvl), strconv.Itoa(dist[lvl])})
	}
	table.Render()
}

func printOutcomes(rows []repository.OutcomeRow) {
	color.Yellow("\nRecent Outcomes")
	if len(rows) == 0 {
		fmt.Println("No exams finished yet.")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Finished", "Candidate", "Score", "Raw", "Result", "Certificate", "Frames"})
	for _, o := range rows {
		result := "PASS"
		if !o.Passed {
			result = "FAIL"
			if o.FailureReason != "" && o.FailureReason != model.DefaultFailureReason {
				result += " (" + o.FailureReason + ")"
			}
		}
		code := "-"
		if o.CertificateCode != nil {
			code = *o.CertificateCode
		}
		table.Append([]string{
			o.FinishedAt.Format("2006-01-02 15:04"),
			o.FullName,
			strconv.Itoa(o.Score) + "%",
			fmt.Sprintf("%d/%d", o.RawScore, o.TotalQuestions),
			result,
			code,
			strconv.Itoa(o.Frames),
		})
	}
	table.Render()
}
