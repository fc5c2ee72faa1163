package services

import (
	"fmt"

	"github.com/kendall-kelly/servicepro-api/models"
	"github.com/skip2/go-qrcode"
	"github.com/xuri/excelize/v2"
)

const jobsSheet = "Jobs"

var jobExportHeaders = []string{
	"ID", "Receipt No", "Title", "Status", "Customer", "Phone",
	"Technician", "Check-in Date", "Total",
}

// Default and maximum QR code sizes in pixels
const (
	DefaultQRSize = 256
	MaxQRSize     = 1024
)

// ReportService renders job data into downloadable formats
type ReportService struct {
	appURL string
}

// NewReportService creates a report service. appURL is the base of the links
// encoded in job QR codes.
func NewReportService(appURL string) *ReportService {
	return &ReportService{appURL: appURL}
}

// ExportJobs writes one row per job into a new workbook
func (s *ReportService) ExportJobs(jobs []models.Job) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", jobsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, h := range jobExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(jobsSheet, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
		_ = f.SetCellStyle(jobsSheet, cell, cell, headerStyle)
	}

	for i, job := range jobs {
		row := i + 2
		values := []interface{}{
			job.ID,
			job.ReceiptNo,
			job.Title,
			job.Status.Label(),
			"",
			"",
			"",
			job.CheckInDate.Format("2006-01-02"),
			job.ChargeTotal(),
		}
		if job.Customer != nil {
			values[4] = job.Customer.Name
			if job.Customer.Phone != nil {
				values[5] = *job.Customer.Phone
			}
		}
		if job.AssignedTo != nil {
			values[6] = job.AssignedTo.Name
		}

		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(jobsSheet, start, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
	}

	widths := []float64{6, 14, 36, 18, 22, 16, 20, 14, 10}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(jobsSheet, col, col, w)
	}
	return f, nil
}

// JobURL is the staff-facing page for a job
func (s *ReportService) JobURL(jobID uint) string {
	return fmt.Sprintf("%s/dashboard/jobs/%d", s.appURL, jobID)
}

// JobQRCode renders a PNG QR code linking to the job page. size is clamped
// to (0, MaxQRSize]; zero means DefaultQRSize.
func (s *ReportService) JobQRCode(jobID uint, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	if size > MaxQRSize {
		size = MaxQRSize
	}

	png, err := qrcode.Encode(s.JobURL(jobID), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode QR code: %w", err)
	}
	return png, nil
}
