package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
)

// excelHeaderAliases maps recognized column headers to the canonical
// catalog fields.
var excelHeaderAliases = map[string]string{
	"id": "id", "product_id": "id", "產品id": "id",
	"name": "name", "product_name": "name", "產品名稱": "name",
	"description": "description", "產品描述": "description",
	"price": "price", "價格": "price",
	"category": "category", "類別": "category",
}

// extractExcelCatalog reads an XLSX product sheet: the first row is the
// header, every following row becomes one product chunk. Unrecognized
// columns are appended as specifications.
func extractExcelCatalog(content []byte) ([]domain.Chunk, error) {
	file, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	var chunks []domain.Chunk
	for _, sheet := range file.GetSheetList() {
		rows, err := file.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) < 2 {
			continue
		}

		headers := rows[0]
		for _, row := range rows[1:] {
			product, specs := rowToProduct(headers, row)
			if product.ID == "" && product.Name == "" {
				continue
			}
			product.Specifications = specs
			chunks = append(chunks, productChunk(product))
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("xlsx catalog contains no product rows")
	}
	return chunks, nil
}

func rowToProduct(headers, row []string) (catalogProduct, map[string]string) {
	var product catalogProduct
	specs := map[string]string{}
	for i, header := range headers {
		if i >= len(row) {
			break
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}
		switch excelHeaderAliases[strings.ToLower(strings.TrimSpace(header))] {
		case "id":
			product.ID = value
		case "name":
			product.Name = value
		case "description":
			product.Description = value
		case "price":
			product.Price = json.Number(value)
		case "category":
			product.Category = value
		default:
			specs[strings.TrimSpace(header)] = value
		}
	}
	if len(specs) == 0 {
		specs = nil
	}
	return product, specs
}
