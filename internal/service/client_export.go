package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/health-registry-api/internal/models"
	appErrors "github.com/noah-isme/health-registry-api/pkg/errors"
	"github.com/noah-isme/health-registry-api/pkg/export"
)

var rosterHeaders = []string{"Full name", "Age", "Gender", "Phone number", "Email", "Registered", "Active programs"}

// RosterExport is a rendered client roster document.
type RosterExport struct {
	Format   export.Format
	Filename string
	Content  []byte
	Rows     int
}

// ExportRoster renders every client matching the search term as a CSV or PDF roster.
func (s *ClientService) ExportRoster(ctx context.Context, search, format string) (*RosterExport, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Validation("invalid export format", appErrors.FieldError{Field: "format", Message: err.Error()})
	}

	data := export.Dataset{Title: "Client roster", Headers: rosterHeaders}
	profiles, _, err := s.List(ctx, models.ClientFilter{Search: search})
	if err != nil {
		return nil, err
	}
	for _, profile := range profiles {
		data.Rows = append(data.Rows, rosterRow(profile))
	}

	content, err := export.Render(f, data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render client roster")
	}
	s.logger.Info("client roster exported", zap.String("format", string(f)), zap.Int("rows", len(data.Rows)))
	return &RosterExport{
		Format:   f,
		Filename: "client-roster." + string(f),
		Content:  content,
		Rows:     len(data.Rows),
	}, nil
}

func rosterRow(profile models.ClientProfile) []string {
	var programs []string
	for _, enrollment := range profile.Enrollments {
		if enrollment.Active {
			programs = append(programs, enrollment.ProgramName)
		}
	}
	return []string{
		profile.FullName,
		strconv.Itoa(profile.Age),
		profile.Gender,
		profile.PhoneNumber,
		profile.Email,
		profile.RegistrationDate.Format(models.DateLayout),
		strings.Join(programs, "; "),
	}
}
