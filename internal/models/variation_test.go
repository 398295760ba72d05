package models

import (
	"encoding/json"
	"testing"

	"gorm.io/datatypes"
)

func TestVariationLetterFor(t *testing.T) {
	cases := []struct {
		index int
		want  string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
	}
	for _, tc := range cases {
		if got := VariationLetterFor(tc.index); got != tc.want {
			t.Errorf("VariationLetterFor(%d) = %q, want %q", tc.index, got, tc.want)
		}
	}
}

func TestVariation_DecodeQRPayload(t *testing.T) {
	payload := QRPayload{
		ExamID:          3,
		VariationID:     12,
		VariationLetter: "C",
		Type:            QRPayloadType,
		Timestamp:       1756684800,
		Nonce:           "4f2b9a1c",
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	v := &Variation{ID: 12, ExamID: 3, QRPayload: datatypes.JSON(encoded)}
	decoded, err := v.DecodeQRPayload()
	if err != nil {
		t.Fatalf("DecodeQRPayload failed: %v", err)
	}
	if *decoded != payload {
		t.Errorf("decoded = %+v, want %+v", *decoded, payload)
	}

	v.QRPayload = datatypes.JSON([]byte("not json"))
	if _, err := v.DecodeQRPayload(); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestVariation_QuestionsOrder(t *testing.T) {
	v := &Variation{
		Questions: []VariationQuestion{
			{QuestionID: 30, Order: 1},
			{QuestionID: 10, Order: 2},
			{QuestionID: 20, Order: 3},
		},
	}
	got := v.QuestionsOrder()
	want := []uint{30, 10, 20}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: %d, want %d", i, got[i], want[i])
		}
	}
}
