package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/garagehq/garagehq/jobs"
)

// Enqueuer submits sales notifications to the job queue.
type Enqueuer interface {
	EnqueueQuoteNotification(ctx context.Context, payload jobs.QuoteNotificationPayload) (*asynq.TaskInfo, error)
}

// Service implements quote-request business rules.
type Service struct {
	repo       Repository
	queue      Enqueuer
	salesInbox string
	logger     *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, queue Enqueuer, salesInbox string, logger *slog.Logger) *Service {
	return &Service{repo: repo, queue: queue, salesInbox: salesInbox, logger: logger}
}

// Submit persists a quote request and notifies the sales inbox. A queue
// failure never loses the request; the row is already committed.
func (s *Service) Submit(ctx context.Context, q QuoteRequest) (QuoteRequest, error) {
	if !q.ServiceType.Valid() {
		return QuoteRequest{}, fmt.Errorf("quotes: unknown service type %q", q.ServiceType)
	}
	created, err := s.repo.Insert(ctx, q)
	if err != nil {
		return QuoteRequest{}, err
	}

	vehicle := created.VehicleBrand + " " + created.VehicleModel
	if created.VehicleYear > 0 {
		vehicle += " (" + strconv.Itoa(created.VehicleYear) + ")"
	}
	if _, err := s.queue.EnqueueQuoteNotification(ctx, jobs.QuoteNotificationPayload{
		QuoteID:     strconv.FormatInt(created.ID, 10),
		Name:        created.FirstName + " " + created.LastName,
		Email:       created.Email,
		Phone:       created.Phone,
		ServiceType: string(created.ServiceType),
		Vehicle:     vehicle,
		Message:     created.Message,
		Inbox:       s.salesInbox,
	}); err != nil {
		s.logger.Warn("enqueue quote notification", slog.Int64("quote_id", created.ID), slog.Any("error", err))
	}
	return created, nil
}

// Get returns a single quote request.
func (s *Service) Get(ctx context.Context, id int64) (QuoteRequest, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of quote requests, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status, page, limit int) ([]QuoteRequest, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("quotes: unknown status %q", status)
	}
	return s.repo.List(ctx, status, page, limit)
}

// UpdateStatus moves a quote through the follow-up workflow.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("quotes: unknown status %q", status)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}
