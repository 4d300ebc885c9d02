package messaging_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uma-arai/sbcntr-reservation/internal/messaging"
	"github.com/uma-arai/sbcntr-reservation/internal/model"
	"github.com/uma-arai/sbcntr-reservation/internal/service/ingest"
)

const subject = "reservations"

// MockReservationRepository はテスト用のモックリポジトリです
type MockReservationRepository struct {
	mu           sync.Mutex
	reservations []model.Reservation
	saveErrFor   map[string]error
}

func (m *MockReservationRepository) Save(ctx context.Context, reservation model.Reservation) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveErrFor[reservation.ReservationName]; err != nil {
		return model.Reservation{}, err
	}
	reservation.ID = fmt.Sprintf("id-%d", len(m.reservations)+1)
	m.reservations = append(m.reservations, reservation)
	return reservation, nil
}

func (m *MockReservationRepository) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations = nil
	return nil
}

func (m *MockReservationRepository) FindAll(ctx context.Context) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Reservation{}, m.reservations...), nil
}

func runServer(t *testing.T) *server.Server {
	t.Helper()
	s := natsserver.RunRandClientPortServer()
	t.Cleanup(s.Shutdown)
	return s
}

func connect(t *testing.T, s *server.Server) *messaging.Conn {
	t.Helper()
	conn, err := messaging.Connect(messaging.Config{
		URL:            s.ClientURL(),
		Subject:        subject,
		Queue:          "reservation-service",
		ClientName:     t.Name(),
		Concurrency:    4,
		HandlerTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func publish(t *testing.T, conn *messaging.Conn, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, conn.Publish(subject, []byte(name)))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Flush(ctx))
}

func TestConn_IngestsThroughSubscription(t *testing.T) {
	t.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")

	s := runServer(t)
	conn := connect(t, s)

	repo := &MockReservationRepository{
		saveErrFor: map[string]error{"broken": errors.New("write conflict")},
	}
	processor := ingest.NewProcessor(repo)

	var delivered sync.Map
	sub, err := conn.Subscribe(subject, func(ctx context.Context, payload []byte) error {
		delivered.Store(string(payload), true)
		return processor.Handle(ctx, payload)
	})
	require.NoError(t, err)

	// 保存に失敗したメッセージの後も購読は継続する
	publish(t, conn, "broken", "Ada")

	require.Eventually(t, func() bool {
		_, broken := delivered.Load("broken")
		found, _ := repo.FindAll(context.Background())
		return broken && len(found) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, sub.Close())

	found, _ := repo.FindAll(context.Background())
	require.Len(t, found, 1)
	assert.Equal(t, "Ada", found[0].ReservationName)
	assert.NotEmpty(t, found[0].ID)
}

func TestSubscription_CloseWaitsForInflightHandlers(t *testing.T) {
	s := runServer(t)
	conn := connect(t, s)

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	sub, err := conn.Subscribe(subject, func(ctx context.Context, payload []byte) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	})
	require.NoError(t, err)

	publish(t, conn, "Ada")

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}

	closed := make(chan error, 1)
	go func() {
		closed <- sub.Close()
	}()

	select {
	case err := <-closed:
		t.Fatalf("Close() returned while a handler was running: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return after the handler finished")
	}
	assert.True(t, finished.Load())
}

func TestSubscription_CloseAfterConnectionClosed(t *testing.T) {
	s := runServer(t)
	conn := connect(t, s)

	sub, err := conn.Subscribe(subject, func(ctx context.Context, payload []byte) error {
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	assert.NoError(t, sub.Close())
}
