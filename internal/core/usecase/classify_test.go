package usecase

import (
	"testing"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		question string
		want     domain.QueryClass
	}{
		{"product id token", "HL-2001 有什麼規格?", domain.ClassProduct},
		{"product id embedded", "請比較 TL-4523 與其他型號", domain.ClassProduct},
		{"keyword product", "這個產品多少錢?", domain.ClassProduct},
		{"keyword price", "價格是多少?", domain.ClassProduct},
		{"keyword worklight", "有沒有防水的工作燈?", domain.ClassProduct},
		{"keyword headlamp", "頭燈的亮度如何?", domain.ClassProduct},
		{"general question", "公司的退貨政策是什麼?", domain.ClassGeneral},
		{"lowercase id not matched", "hl-2001 是什麼?", domain.ClassGeneral},
		{"short digits not matched", "AB-123 是什麼?", domain.ClassGeneral},
		{"empty", "", domain.ClassGeneral},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.question); got != tc.want {
				t.Errorf("Classify(%q) = %q, want %q", tc.question, got, tc.want)
			}
		})
	}
}
