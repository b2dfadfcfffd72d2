package report

import (
	"context"
	"encoding/json"

	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
)

// JSONRenderer renders the report payload as indented JSON. PDF and HTML
// renderers live outside the engine and plug in through ports.ReportRenderer.
type JSONRenderer struct{}

var _ ports.ReportRenderer = JSONRenderer{}

func (JSONRenderer) Render(_ context.Context, r *models.Report) ([]byte, string, error) {
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return body, "application/json", nil
}
