package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// QRPayloadType identifies the payload consumed by the external QR renderer.
const QRPayloadType = "exam_access"

// QRPayload is the opaque identity blob embedded in a variation's QR code.
// The renderer must never need to re-derive the answer key from it.
type QRPayload struct {
	ExamID          uint   `json:"exam_id"`
	VariationID     uint   `json:"variation_id"`
	VariationLetter string `json:"variation_letter"`
	Type            string `json:"type"`
	Timestamp       int64  `json:"timestamp"`
	Nonce           string `json:"nonce"`
}

// Variation is one concrete, fully-ordered question set generated for an
// exam. Immutable once created; only regenerated wholesale while the exam
// is unpublished.
type Variation struct {
	ID              uint   `json:"id" gorm:"primaryKey"`
	ExamID          uint   `json:"exam_id" gorm:"not null;index"`
	VariationNumber int    `json:"variation_number" gorm:"not null"`
	VariationLetter string `json:"variation_letter" gorm:"not null;size:3"`

	QRPayload datatypes.JSON `json:"qr_payload" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Exam      Exam                `json:"exam" gorm:"foreignKey:ExamID"`
	Questions []VariationQuestion `json:"questions" gorm:"foreignKey:VariationID"`
}

// VariationQuestion links a question into a variation at a fixed position.
// Order is 1-based and defines the canonical answer-key order.
type VariationQuestion struct {
	ID          uint `json:"id" gorm:"primaryKey"`
	VariationID uint `json:"variation_id" gorm:"not null;index"`
	QuestionID  uint `json:"question_id" gorm:"not null;index"`
	Order       int  `json:"order" gorm:"not null"`
	Points      int  `json:"points" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Question Question `json:"question" gorm:"foreignKey:QuestionID"`
}

// QuestionsOrder returns the question ids in answer-key order. Links must be
// loaded sorted by Order.
func (v *Variation) QuestionsOrder() []uint {
	ids := make([]uint, len(v.Questions))
	for i, link := range v.Questions {
		ids[i] = link.QuestionID
	}
	return ids
}

// DecodeQRPayload unmarshals the stored payload.
func (v *Variation) DecodeQRPayload() (*QRPayload, error) {
	var p QRPayload
	if err := json.Unmarshal(v.QRPayload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// VariationLetterFor derives the display letter from a 0-based variation
// index: 0→A, 1→B, ..., 25→Z, 26→AA.
func VariationLetterFor(index int) string {
	letter := ""
	n := index
	for {
		letter = string(rune('A'+n%26)) + letter
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return letter
}

func (Variation) TableName() string {
	return "variations"
}

func (VariationQuestion) TableName() string {
	return "variation_questions"
}
