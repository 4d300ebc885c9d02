package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-reservation/internal/messaging"
	"github.com/uma-arai/sbcntr-reservation/internal/model"
	"github.com/uma-arai/sbcntr-reservation/internal/repository"
)

// IngestionError は受信した1件のメッセージの保存失敗を表します
type IngestionError struct {
	Name string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("failed to ingest reservation %q: %v", e.Name, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// Processor は受信した名前を予約として保存します
type Processor struct {
	reservationRepo repository.ReservationRepository
}

// NewProcessor は新しいProcessorを作成します
func NewProcessor(reservationRepo repository.ReservationRepository) *Processor {
	return &Processor{reservationRepo: reservationRepo}
}

// Handle は1件のメッセージを予約に変換して保存します
// ペイロードはそのまま予約名として扱います
func (p *Processor) Handle(ctx context.Context, payload []byte) error {
	ctx, seg := xray.BeginSegment(ctx, "ReservationProcessor.Handle")
	defer seg.Close(nil)

	name := string(payload)

	saved, err := p.reservationRepo.Save(ctx, model.NewReservation(name))
	if err != nil {
		return &IngestionError{Name: name, Err: err}
	}

	log.Printf("wrote %s to the DB with ID # %s", saved.ReservationName, saved.ID)
	return nil
}

// Run はsubjectを購読し、ctxが終了するまでメッセージを処理し続けます
func (p *Processor) Run(ctx context.Context, source messaging.Source, subject string) error {
	sub, err := source.Subscribe(subject, p.Handle)
	if err != nil {
		return fmt.Errorf("failed to start ingestion: %w", err)
	}

	<-ctx.Done()

	log.Printf("Stopping ingestion from %s", subject)
	if err := sub.Close(); err != nil {
		return fmt.Errorf("failed to stop ingestion: %w", err)
	}
	return nil
}
