package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-reservation/internal/model"
)

// CollectionName は予約ドキュメントを保持するコレクション(テーブル)名です
const CollectionName = "reservation"

// newID はストアが採番する予約IDを生成します
var newID = uuid.NewString

// ReservationRepository は予約の永続化を担当するインターフェースです
type ReservationRepository interface {
	Save(ctx context.Context, reservation model.Reservation) (model.Reservation, error)
	DeleteAll(ctx context.Context) error
	FindAll(ctx context.Context) ([]model.Reservation, error)
}

// ReservationRepositoryImpl はPostgresのJSONB列をドキュメントストアとして利用します
type ReservationRepositoryImpl struct {
	db *DB
}

func NewReservationRepository(db *DB) *ReservationRepositoryImpl {
	return &ReservationRepositoryImpl{db: db}
}

// EnsureCollection はコレクションが存在しない場合に作成します
func (r *ReservationRepositoryImpl) EnsureCollection(ctx context.Context) error {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.EnsureCollection")
	defer seg.Close(nil)

	query := `
		CREATE TABLE IF NOT EXISTS reservation (
			_id      TEXT PRIMARY KEY,
			document JSONB NOT NULL
		)
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return persistenceError("create collection for", err)
	}

	return nil
}

// Save は予約を保存し、IDが採番された予約を返します
// IDを持つ予約は同じIDのドキュメントを置き換えます
func (r *ReservationRepositoryImpl) Save(ctx context.Context, reservation model.Reservation) (model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.Save")
	defer seg.Close(nil)

	if !reservation.IsPersisted() {
		reservation.ID = newID()
	}

	doc, err := json.Marshal(reservation.ToDocument())
	if err != nil {
		return model.Reservation{}, persistenceError("encode", err)
	}

	query := `
		INSERT INTO reservation (_id, document)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (_id) DO UPDATE SET document = EXCLUDED.document
	`

	if _, err := r.db.ExecContext(ctx, query, reservation.ID, string(doc)); err != nil {
		return model.Reservation{}, persistenceError("save", err)
	}

	return reservation, nil
}

// DeleteAll は全ての予約を削除します
func (r *ReservationRepositoryImpl) DeleteAll(ctx context.Context) error {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.DeleteAll")
	defer seg.Close(nil)

	if _, err := r.db.ExecContext(ctx, `DELETE FROM reservation`); err != nil {
		return persistenceError("delete", err)
	}

	return nil
}

// FindAll は保存されている全ての予約を取得します
// 並び順はストアに依存します
func (r *ReservationRepositoryImpl) FindAll(ctx context.Context) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.FindAll")
	defer seg.Close(nil)

	rows, err := r.db.QueryxContext(ctx, `SELECT document FROM reservation`)
	if err != nil {
		return nil, persistenceError("find", err)
	}
	defer rows.Close()

	reservations := []model.Reservation{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, persistenceError("scan", err)
		}

		var doc model.ReservationDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, persistenceError("decode", fmt.Errorf("invalid document: %w", err))
		}
		reservations = append(reservations, doc.ToReservation())
	}

	if err := rows.Err(); err != nil {
		return nil, persistenceError("iterate", err)
	}

	return reservations, nil
}
