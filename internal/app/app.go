package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"golang.org/x/sync/errgroup"

	"github.com/uma-arai/sbcntr-reservation/internal/api"
	"github.com/uma-arai/sbcntr-reservation/internal/common/config"
	"github.com/uma-arai/sbcntr-reservation/internal/common/database"
	"github.com/uma-arai/sbcntr-reservation/internal/common/utils"
	"github.com/uma-arai/sbcntr-reservation/internal/heartbeat"
	"github.com/uma-arai/sbcntr-reservation/internal/messaging"
	"github.com/uma-arai/sbcntr-reservation/internal/repository"
	"github.com/uma-arai/sbcntr-reservation/internal/service/ingest"
	"github.com/uma-arai/sbcntr-reservation/internal/service/seed"
)

const (
	// ProjectName はX-Rayのセグメント名として利用します
	ProjectName = "sbcntr-reservation"

	shutdownTimeout = 10 * time.Second
)

// App はアプリケーション全体の状態を保持します
type App struct {
	cfg *config.Config

	db              *repository.DB
	reservationRepo repository.ReservationRepository
	source          messaging.Source
	closeSource     func() error

	processor *ingest.Processor
	seeder    *seed.Runner
	server    *http.Server

	mu   sync.Mutex
	addr net.Addr
}

// New はDB・メッセージバスに接続し、各コンポーネントを組み立てます
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	conn, err := database.NewDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	db := repository.NewDB(conn.DB)

	reservationRepo := repository.NewReservationRepository(db)

	segCtx, seg := xray.BeginSegment(ctx, ProjectName+".EnsureCollection")
	err = reservationRepo.EnsureCollection(segCtx)
	seg.Close(err)
	if err != nil {
		db.Close()
		return nil, err
	}

	bus, err := messaging.Connect(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to message bus: %w", err)
	}

	a := assemble(cfg, db, reservationRepo, bus)
	a.closeSource = bus.Close
	return a, nil
}

// assemble は接続済みの依存関係からアプリケーションを組み立てます
func assemble(cfg *config.Config, db *repository.DB, reservationRepo repository.ReservationRepository, source messaging.Source) *App {
	opts := api.Options{SSEEnabled: cfg.HTTP.SSEEnabled}
	if cfg.EnableTracing {
		opts.TracingName = ProjectName
	}

	router := api.NewRouter(reservationRepo, heartbeat.New(), opts)

	return &App{
		cfg:             cfg,
		db:              db,
		reservationRepo: reservationRepo,
		source:          source,
		processor:       ingest.NewProcessor(reservationRepo),
		seeder:          seed.NewRunner(reservationRepo, seed.DefaultNames),
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run はメッセージの購読、シード投入、HTTPサーバーを開始し、ctxが終了するまでブロックします
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.server.Addr, err)
	}
	a.setAddr(ln.Addr())

	g, ctx := errgroup.WithContext(ctx)

	// リクエストのコンテキストはRunのコンテキストから派生し、終了時に /sse も閉じる
	a.server.BaseContext = func(net.Listener) context.Context {
		return ctx
	}

	g.Go(func() error {
		return a.processor.Run(ctx, a.source, a.cfg.NATS.Subject)
	})

	// シード投入は起動処理をブロックしない。失敗してもRunは継続する
	if a.cfg.Seed.Enabled {
		g.Go(func() error {
			a.seed(ctx)
			return nil
		})
	}

	g.Go(func() error {
		log.Printf("HTTP server listening on %s", ln.Addr())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Println("Stopping HTTP server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Addr はHTTPサーバーが待ち受けているアドレスを返します。Run開始前はnilです
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

func (a *App) setAddr(addr net.Addr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addr = addr
}

// seed はシード投入を実行します。失敗はログに残すのみでプロセスは継続します
func (a *App) seed(ctx context.Context) {
	ctx, seg := xray.BeginSegment(ctx, ProjectName+".Seed")

	err := utils.RunWithTimeout(ctx, a.cfg.Seed.Timeout, a.seeder.Run)
	seg.Close(err)
	if err != nil {
		log.Printf("Seeding reservations failed: %v", err)
	}
}

// Close は終了処理を行います
func (a *App) Close() error {
	var errs []error
	if a.closeSource != nil {
		errs = append(errs, a.closeSource())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
