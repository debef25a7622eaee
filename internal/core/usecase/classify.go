package usecase

import (
	"regexp"
	"strings"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
)

// productIDPattern matches structured catalog identifiers such as
// HK-2189 or TL-4523.
var productIDPattern = regexp.MustCompile(`[A-Z]{2}-\d{4}`)

// productKeywords is the fixed vocabulary that marks a question as a
// product query even without an explicit identifier.
var productKeywords = []string{"產品", "商品", "規格", "價格", "類別", "工作燈", "頭燈"}

// Classify tags a question as a product-entity query or a general
// document query. It is a pure string heuristic, first match wins:
// a product-ID token, then any product keyword, otherwise general.
func Classify(question string) domain.QueryClass {
	if productIDPattern.MatchString(question) {
		return domain.ClassProduct
	}
	for _, keyword := range productKeywords {
		if strings.Contains(question, keyword) {
			return domain.ClassProduct
		}
	}
	return domain.ClassGeneral
}
