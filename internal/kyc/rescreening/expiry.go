package rescreening

import (
	"context"
	"fmt"
	"time"

	"kyccase/internal/kyc/ports"
	id "kyccase/pkg/domain"
)

// ExpiringDocument is an individual's primary ID nearing expiry.
type ExpiringDocument struct {
	SubjectID  id.SubjectID `json:"subject_id"`
	ExternalID string       `json:"external_id"`
	Name       string       `json:"name"`
	ExpiryDate time.Time    `json:"expiry_date"`
	DaysLeft   int          `json:"days_left"`
}

// ExpiryReport is the outcome of one sweep. Expired documents are counted
// but not notified.
type ExpiryReport struct {
	Expiring []ExpiringDocument `json:"expiring"`
	Expired  int                `json:"expired"`
	Notified int                `json:"notified"`
	DryRun   bool               `json:"dry_run"`
}

// CheckExpiringDocuments finds individuals whose primary ID document expires
// within window and notifies compliance for each unless dryRun is set.
func (s *Scheduler) CheckExpiringDocuments(ctx context.Context, window time.Duration, dryRun bool) (ExpiryReport, error) {
	if window <= 0 {
		window = DefaultConfig().ExpiryWindow
	}
	now := s.now()
	rep := ExpiryReport{DryRun: dryRun}

	subjects, err := s.catalog.ListIndividualsWithIDExpiryBefore(ctx, now.Add(window))
	if err != nil {
		return rep, fmt.Errorf("list expiring documents: %w", err)
	}
	for _, subj := range subjects {
		expiry := subj.PrimaryIDExpiry()
		if expiry == nil {
			continue
		}
		if expiry.Before(now) {
			rep.Expired++
			continue
		}
		rep.Expiring = append(rep.Expiring, ExpiringDocument{
			SubjectID:  subj.ID,
			ExternalID: subj.ExternalID,
			Name:       subj.DisplayName(),
			ExpiryDate: *expiry,
			DaysLeft:   int(expiry.Sub(now).Hours() / 24),
		})
	}
	s.metrics.SetExpiringDocuments(len(rep.Expiring), rep.Expired)

	if !dryRun && s.alerts != nil {
		for _, doc := range rep.Expiring {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			err := s.alerts.Publish(ctx, ports.Alert{
				SubjectID:   doc.SubjectID,
				ExternalID:  doc.ExternalID,
				Title:       "ID Document Expiring",
				Description: fmt.Sprintf("ID document for %s expires on %s (%d days)", doc.Name, doc.ExpiryDate.Format(time.DateOnly), doc.DaysLeft),
				Severity:    ports.AlertMedium,
				RaisedAt:    now,
			})
			if err != nil {
				s.logger.WarnContext(ctx, "expiry notification failed",
					"subject_id", doc.SubjectID,
					"error", err,
				)
				continue
			}
			rep.Notified++
		}
	}

	s.logger.InfoContext(ctx, "document expiry sweep finished",
		"expiring", len(rep.Expiring),
		"expired", rep.Expired,
		"notified", rep.Notified,
		"dry_run", dryRun,
	)
	return rep, nil
}
