package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/examforge/variation-engine/internal/repositories"
)

type exportService struct {
	repo       repositories.Repository
	logger     *slog.Logger
	statistics StatisticsService
}

func NewExportService(repo repositories.Repository, logger *slog.Logger, statistics StatisticsService) ExportService {
	return &exportService{
		repo:       repo,
		logger:     logger,
		statistics: statistics,
	}
}

// ExportExamStatistics renders the four aggregate views into one workbook,
// one sheet per view.
func (s *exportService) ExportExamStatistics(ctx context.Context, examID uint, userID string) ([]byte, string, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get exam: %w", err)
	}

	stats, err := s.statistics.GetExamStatistics(ctx, examID, userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get exam statistics: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := s.writeOverviewSheet(f, exam.Title, stats); err != nil {
		return nil, "", err
	}
	if err := s.writeVariationsSheet(f, stats); err != nil {
		return nil, "", err
	}
	if err := s.writeDistributionSheet(f, stats); err != nil {
		return nil, "", err
	}
	if err := s.writeDifficultySheet(f, stats); err != nil {
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize workbook: %w", err)
	}

	filename := fmt.Sprintf("exam_%d_statistics_%s.xlsx", examID, time.Now().Format("20060102_150405"))
	s.logger.InfoContext(ctx, "Exam statistics exported", "exam_id", examID, "filename", filename)

	return buf.Bytes(), filename, nil
}

// ExportResults renders the raw result list, one row per scored submission.
func (s *exportService) ExportResults(ctx context.Context, examID uint, userID string) ([]byte, string, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.CreatedBy != userID {
		return nil, "", NewValidationError("user_id", "only the exam owner can export results", userID)
	}

	results, err := s.repo.Result().GetAllByExam(ctx, nil, examID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load results: %w", err)
	}

	letters := make(map[uint]string)
	variations, err := s.repo.Variation().GetByExam(ctx, nil, examID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load variations: %w", err)
	}
	for _, v := range variations {
		letters[v.ID] = v.VariationLetter
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Results"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Student ID", "Variation", "Correct", "Total", "Score", "Percentage", "Passed", "Time Spent (s)", "Submitted At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, r := range results {
		values := []interface{}{
			r.StudentID,
			letters[r.VariationID],
			r.CorrectCount,
			r.TotalQuestions,
			r.Score,
			r.Percentage,
			r.Passed,
			r.TimeSpent,
			r.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize workbook: %w", err)
	}

	filename := fmt.Sprintf("exam_%d_results_%s.xlsx", examID, time.Now().Format("20060102_150405"))
	s.logger.InfoContext(ctx, "Exam results exported",
		"exam_id", examID,
		"result_count", len(results),
		"filename", filename)

	return buf.Bytes(), filename, nil
}

// ===== SHEET BUILDERS =====

func (s *exportService) writeOverviewSheet(f *excelize.File, title string, stats *ExamStatistics) error {
	sheet := "Overview"
	f.SetSheetName("Sheet1", sheet)

	rows := [][]interface{}{
		{"Exam", title},
		{"Computed At", stats.ComputedAt.Format(time.RFC3339)},
		{},
		{"Submissions", stats.Overall.Count},
		{"Average Score", stats.Overall.AverageScore},
		{"Min Score", stats.Overall.MinScore},
		{"Max Score", stats.Overall.MaxScore},
		{"Passed", stats.Overall.PassedCount},
		{"Pass Rate (%)", stats.Overall.PassRate},
		{"Average Time (s)", stats.Overall.AverageTime},
	}
	return writeRows(f, sheet, rows)
}

func (s *exportService) writeVariationsSheet(f *excelize.File, stats *ExamStatistics) error {
	sheet := "Per Variation"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	rows := [][]interface{}{
		{"Variation", "Submissions", "Average Score", "Min Score", "Max Score", "Passed", "Pass Rate (%)"},
	}
	for _, vs := range stats.PerVariation {
		rows = append(rows, []interface{}{
			vs.VariationLetter,
			vs.Count,
			vs.AverageScore,
			vs.MinScore,
			vs.MaxScore,
			vs.PassedCount,
			vs.PassRate,
		})
	}
	return writeRows(f, sheet, rows)
}

func (s *exportService) writeDistributionSheet(f *excelize.File, stats *ExamStatistics) error {
	sheet := "Score Distribution"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	rows := [][]interface{}{
		{"Range (%)", "Count"},
	}
	for _, bucket := range stats.ScoreDistribution {
		rows = append(rows, []interface{}{bucket.Label, bucket.Count})
	}
	return writeRows(f, sheet, rows)
}

func (s *exportService) writeDifficultySheet(f *excelize.File, stats *ExamStatistics) error {
	sheet := "Difficulty"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	rows := [][]interface{}{
		{"Difficulty", "Answers", "Correct", "Correct (%)"},
	}
	for _, ds := range stats.DifficultyPerformance {
		rows = append(rows, []interface{}{string(ds.Difficulty), ds.Total, ds.Correct, ds.Percentage})
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return fmt.Errorf("failed to resolve cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}
	return nil
}
