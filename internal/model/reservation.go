package model

// Reservation は予約情報を表す構造体です
// IDはストアが初回保存時に採番し、以降は変更されません
type Reservation struct {
	ID              string `json:"id,omitempty"`
	ReservationName string `json:"reservationName,omitempty"`
}

// NewReservation はID未採番の予約を作成します
func NewReservation(name string) Reservation {
	return Reservation{ReservationName: name}
}

// IsPersisted はストアによってIDが採番済みかどうかを返します
func (r Reservation) IsPersisted() bool {
	return r.ID != ""
}

// String は予約をログ出力用の文字列に変換します
func (r Reservation) String() string {
	return "Reservation(id=" + r.ID + ", reservationName=" + r.ReservationName + ")"
}

// ReservationDocument はドキュメントストアに保存される予約ドキュメントです
// コレクション上のフィールド名は _id と reservationName になります
type ReservationDocument struct {
	ID              string `json:"_id"`
	ReservationName string `json:"reservationName"`
}

// ToDocument は予約を保存用のドキュメントに変換します
func (r Reservation) ToDocument() ReservationDocument {
	return ReservationDocument{
		ID:              r.ID,
		ReservationName: r.ReservationName,
	}
}

// ToReservation はドキュメントを予約に変換します
func (d ReservationDocument) ToReservation() Reservation {
	return Reservation{
		ID:              d.ID,
		ReservationName: d.ReservationName,
	}
}
