package service

import (
	"context"
	"fmt"
	"time"

	"pos-core/internal/domain"
	"pos-core/internal/repository"
)

// ReportRange is an inclusive range of calendar days.
type ReportRange struct {
	From time.Time
	To   time.Time
}

// bounds converts the day range into [from 00:00, to+1day 00:00).
func (r ReportRange) bounds() (time.Time, time.Time, error) {
	from := truncateDay(r.From)
	to := truncateDay(r.To)
	if to.Before(from) {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return from, to.AddDate(0, 0, 1), nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ReportService aggregates completed sales for the back office
type ReportService interface {
	SalesByDay(ctx context.Context, r ReportRange) ([]repository.DailySales, error)
	SalesByCategory(ctx context.Context, r ReportRange) ([]repository.GroupTotal, error)
	SalesByCashier(ctx context.Context, r ReportRange) ([]repository.GroupTotal, error)
	SalesByPaymentMethod(ctx context.Context, r ReportRange) ([]repository.GroupTotal, error)
	AuditLog(ctx context.Context, filter repository.AuditFilter) ([]*domain.AuditEntry, error)
}

type reportService struct {
	reports repository.ReportRepository
	audit   AuditTrail
}

func NewReportService(reports repository.ReportRepository, audit AuditTrail) ReportService {
	return &reportService{reports: reports, audit: audit}
}

func (s *reportService) SalesByDay(ctx context.Context, r ReportRange) ([]repository.DailySales, error) {
	from, until, err := r.bounds()
	if err != nil {
		return nil, err
	}
	rows, err := s.reports.SalesByDay(ctx, from, until)
	if err != nil {
		return nil, fmt.Errorf("failed to build daily sales report: %w", err)
	}
	return rows, nil
}

func (s *reportService) SalesByCategory(ctx context.Context, r ReportRange) ([]repository.GroupTotal, error) {
	return s.grouped(ctx, r, "category", s.reports.SalesByCategory)
}

func (s *reportService) SalesByCashier(ctx context.Context, r ReportRange) ([]repository.GroupTotal, error) {
	return s.grouped(ctx, r, "cashier", s.reports.SalesByCashier)
}

func (s *reportService) SalesByPaymentMethod(ctx context.Context, r ReportRange) ([]repository.GroupTotal, error) {
	return s.grouped(ctx, r, "payment method", s.reports.SalesByPaymentMethod)
}

func (s *reportService) grouped(
	ctx context.Context,
	r ReportRange,
	name string,
	query func(context.Context, time.Time, time.Time) ([]repository.GroupTotal, error),
) ([]repository.GroupTotal, error) {
	from, until, err := r.bounds()
	if err != nil {
		return nil, err
	}
	rows, err := query(ctx, from, until)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s report: %w", name, err)
	}
	return rows, nil
}

func (s *reportService) AuditLog(ctx context.Context, filter repository.AuditFilter) ([]*domain.AuditEntry, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.audit.List(ctx, filter)
}
