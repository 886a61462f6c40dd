package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PastMilk78/escencias-robjans-sub000/internal/domain"
)

type stubHealthRepo struct {
	report domain.HealthReport
	checks map[string]domain.HealthCheck
}

func (r stubHealthRepo) Collect(context.Context) (domain.HealthReport, error) {
	return r.report, nil
}

func (r stubHealthRepo) Check(_ context.Context, name string) (domain.HealthCheck, error) {
	check, ok := r.checks[name]
	if !ok {
		return domain.HealthCheck{}, errors.New("unknown dependency")
	}
	return check, nil
}

func TestSystemHealthReportAddsBuildInfo(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := started.Add(90 * time.Minute)
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: stubHealthRepo{report: domain.HealthReport{Status: domain.HealthStatusOK}},
		Clock:            func() time.Time { return now },
		Build:            BuildInfo{CommitSHA: "abc123", Environment: "prod", StartedAt: started},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Version != "dev" || report.CommitSHA != "abc123" || report.Environment != "prod" {
		t.Fatalf("unexpected build info %+v", report)
	}
	if report.Uptime != 90*time.Minute || !report.GeneratedAt.Equal(now) {
		t.Fatalf("unexpected timing uptime=%v generated=%v", report.Uptime, report.GeneratedAt)
	}
}

func TestSystemDatabaseDiagnostic(t *testing.T) {
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: stubHealthRepo{checks: map[string]domain.HealthCheck{
			DatabaseCheckName: {Name: DatabaseCheckName, Status: domain.HealthStatusError, Detail: "timeout"},
		}},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}
	check, err := svc.DatabaseDiagnostic(context.Background())
	if err != nil {
		t.Fatalf("DatabaseDiagnostic: %v", err)
	}
	if check.Status != domain.HealthStatusError || check.Detail != "timeout" {
		t.Fatalf("unexpected check %+v", check)
	}
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatal("expected error without health repository")
	}
}
