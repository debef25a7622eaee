package extractor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
)

type catalogFile struct {
	Products []catalogProduct `json:"products"`
}

type catalogProduct struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Price          json.Number       `json:"price"`
	Category       string            `json:"category"`
	Specifications map[string]string `json:"specifications"`
}

// extractJSONCatalog loads a structured product catalog, emitting one
// chunk per product so each entity is retrievable as a whole and its
// identifier lands in the chunk metadata for exact lookup.
func extractJSONCatalog(content []byte) ([]domain.Chunk, error) {
	var catalog catalogFile
	if err := json.Unmarshal(content, &catalog); err != nil {
		return nil, fmt.Errorf("parse product catalog: %w", err)
	}
	if len(catalog.Products) == 0 {
		return nil, fmt.Errorf("product catalog contains no products")
	}

	chunks := make([]domain.Chunk, 0, len(catalog.Products))
	for _, product := range catalog.Products {
		chunks = append(chunks, productChunk(product))
	}
	return chunks, nil
}

func productChunk(product catalogProduct) domain.Chunk {
	var b strings.Builder
	fmt.Fprintf(&b, "產品ID: %s\n", product.ID)
	fmt.Fprintf(&b, "產品名稱: %s\n", product.Name)
	if product.Description != "" {
		fmt.Fprintf(&b, "產品描述: %s\n", product.Description)
	}
	if product.Price != "" {
		fmt.Fprintf(&b, "價格: %s\n", product.Price.String())
	}
	if product.Category != "" {
		fmt.Fprintf(&b, "類別: %s\n", product.Category)
	}
	if len(product.Specifications) > 0 {
		b.WriteString("產品規格:\n")
		keys := make([]string, 0, len(product.Specifications))
		for key := range product.Specifications {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", key, product.Specifications[key])
		}
	}

	metadata := map[string]string{
		domain.MetaProductID: product.ID,
	}
	if product.Name != "" {
		metadata[domain.MetaProductName] = product.Name
	}
	if product.Category != "" {
		metadata[domain.MetaProductCategory] = product.Category
	}
	return domain.Chunk{
		Text:     strings.TrimRight(b.String(), "\n"),
		Metadata: metadata,
	}
}
