package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"golang.org/x/sync/errgroup"

	"github.com/uma-arai/sbcntr-reservation/internal/model"
	"github.com/uma-arai/sbcntr-reservation/internal/repository"
)

// DefaultNames は起動時に投入する予約名の一覧です
var DefaultNames = []string{
	"Josh",
	"Mario",
	"Madhura",
	"Cornelia",
	"Dr. Syer",
	"Dr. Pollack",
	"Jennifer",
	"Violetta",
}

// Runner は起動時に予約ストアを初期化し、シードデータを投入します
type Runner struct {
	names           []string
	reservationRepo repository.ReservationRepository
}

// NewRunner は新しいRunnerを作成します
func NewRunner(reservationRepo repository.ReservationRepository, names []string) *Runner {
	return &Runner{
		names:           names,
		reservationRepo: reservationRepo,
	}
}

// Run は全件削除、シードの並行保存、全件の出力を順に実行します
// 保存の一部が失敗しても残りの保存と最終的な一覧出力は行います
func (r *Runner) Run(ctx context.Context) error {
	ctx, seg := xray.BeginSubsegment(ctx, "SeedRunner.Run")
	defer seg.Close(nil)

	startTime := time.Now()

	if err := r.reservationRepo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear reservations: %w", err)
	}

	// 保存同士の順序は保証しない
	var g errgroup.Group
	for _, name := range r.names {
		name := name
		g.Go(func() error {
			if _, err := r.reservationRepo.Save(ctx, model.NewReservation(name)); err != nil {
				log.Printf("Failed to seed reservation %s: %v", name, err)
				return err
			}
			return nil
		})
	}
	saveErr := g.Wait()

	reservations, err := r.reservationRepo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list reservations: %w", err)
	}
	for _, reservation := range reservations {
		log.Println(reservation)
	}

	if saveErr != nil {
		return fmt.Errorf("failed to seed reservations: %w", saveErr)
	}

	log.Printf("Seeded %d reservations. Duration: %v", len(r.names), time.Since(startTime))
	return nil
}
