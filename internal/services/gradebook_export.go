package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/submission-service/internal/models"
	"github.com/SAP-F-2025/submission-service/internal/repositories"
)

const (
	gradebookSheet    = "Gradebook"
	gradebookPageSize = 100
)

var gradebookHeader = []interface{}{
	"Submission ID", "User ID", "Name", "Email", "Attempt",
	"Score", "Max Score", "Percentage", "Passed", "Time Spent (s)", "Submitted At",
}

// ExportGradebook writes every submission of the assessment as an XLSX workbook, newest first.
func (s *submissionService) ExportGradebook(ctx context.Context, assessmentID uint, user *models.User, w io.Writer) error {
	if !user.CanReviewSubmissions() {
		return NewPermissionError(user.ID, assessmentID, "assessment", "export_gradebook", "insufficient role permissions")
	}
	assessment, err := s.getAssessment(ctx, assessmentID)
	if err != nil {
		return err
	}

	submissions, err := s.allSubmissions(ctx, assessmentID)
	if err != nil {
		return err
	}
	s.attachUsers(ctx, submissions)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	if err := writeGradebook(f, submissions); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("Gradebook exported",
		"assessment_id", assessment.ID,
		"user_id", user.ID,
		"rows", len(submissions))
	return nil
}

func (s *submissionService) allSubmissions(ctx context.Context, assessmentID uint) ([]*models.Submission, error) {
	var all []*models.Submission
	for offset := 0; ; offset += gradebookPageSize {
		page, total, err := s.repo.Submission().ListByAssessment(ctx, nil, assessmentID, repositories.SubmissionFilters{
			Limit:  gradebookPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list submissions: %w", err)
		}
		all = append(all, page...)
		if len(page) < gradebookPageSize || int64(len(all)) >= total {
			return all, nil
		}
	}
}

func writeGradebook(f *excelize.File, submissions []*models.Submission) error {
	if err := f.SetSheetName(f.GetSheetName(0), gradebookSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(gradebookSheet, "A1", &gradebookHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(gradebookHeader))
	if err := f.SetCellStyle(gradebookSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, sub := range submissions {
		var name, email string
		if sub.User != nil {
			name, email = sub.User.FullName, sub.User.Email
		}
		var timeSpent interface{}
		if sub.TimeSpent != nil {
			timeSpent = *sub.TimeSpent
		}

		row := []interface{}{
			sub.ID, sub.UserID, name, email, sub.AttemptNumber,
			sub.Score, sub.MaxScore, FormatPercentage(sub.Percentage), sub.Passed, timeSpent,
			sub.SubmittedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(gradebookSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(gradebookSheet, "A", lastCol, 16); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	return nil
}
