package catalog

import (
	"path"
	"strings"

	"github.com/DRSN-tech/visual-matcher/internal/domain"
	"github.com/DRSN-tech/visual-matcher/pkg/e"
)

// Порядок предпочтения точных имён колонки изображения.
var preferredImageColumns = []string{"image_url", "image", "url", "img", "imageUrl"}

// Ключевые слова для эвристики по вхождению в имя колонки (без учёта регистра).
var imageColumnKeywords = []string{"image", "img", "photo", "picture", "url"}

// Токены, которые считаются отсутствующим значением идентификатора.
var nullLikeTokens = map[string]struct{}{
	"":     {},
	"nan":  {},
	"none": {},
	"null": {},
}

// Row — сырая строка каталога: имя колонки → строковое значение.
type Row map[string]string

// Normalize превращает сырые табличные строки в канонические записи каталога.
//
// Колонка изображения определяется по таблице правил detectImageColumn; способ
// получения идентификатора выбирается один раз на весь набор (id → sku → имя файла);
// строки без идентификатора или источника изображения отбрасываются с сохранением
// исходного порядка остальных. Функция чистая: одинаковый вход даёт одинаковый выход.
func Normalize(headers []string, rows []Row) ([]domain.Product, error) {
	imageCol, err := detectImageColumn(headers)
	if err != nil {
		return nil, err
	}

	// Строки без источника изображения отбрасываются до выбора способа
	// идентификации: их значения id/sku не должны влиять на каскад.
	withImage := make([]Row, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row[imageCol]) != "" {
			withImage = append(withImage, row)
		}
	}

	resolveID := buildIDResolver(headers, withImage, imageCol)

	products := make([]domain.Product, 0, len(withImage))
	for _, row := range withImage {
		imageURL := strings.TrimSpace(row[imageCol])
		id := resolveID(row, imageURL)
		if id == "" {
			continue
		}

		name := strings.TrimSpace(row["title"])
		if name == "" {
			name = strings.TrimSpace(row["name"])
		}

		products = append(products, domain.Product{
			ID:          id,
			ImageURL:    imageURL,
			Name:        name,
			Price:       strings.TrimSpace(row["price"]),
			Brand:       strings.TrimSpace(row["brand"]),
			Description: strings.TrimSpace(row["description"]),
		})
	}

	return products, nil
}

// detectImageColumn находит колонку с источником изображения: сначала точные имена
// в порядке предпочтения, затем первая колонка, имя которой содержит ключевое слово.
func detectImageColumn(headers []string) (string, error) {
	have := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		have[h] = struct{}{}
	}

	for _, pref := range preferredImageColumns {
		if _, ok := have[pref]; ok {
			return pref, nil
		}
	}

	for _, h := range headers {
		lower := strings.ToLower(h)
		for _, kw := range imageColumnKeywords {
			if strings.Contains(lower, kw) {
				return h, nil
			}
		}
	}

	return "", e.Wrap("catalog must contain an image column (e.g. 'image_url', 'image', 'url', 'img')", e.ErrSchema)
}

// buildIDResolver выбирает способ получения идентификатора один раз на весь набор:
// (a) колонка id, если в ней есть хоть одно не-null значение — отдельные пропуски
// заполняются именем файла изображения; (b) иначе колонка sku, если есть непустые
// значения; (c) иначе идентификатор всегда образуется из имени файла.
func buildIDResolver(headers []string, rows []Row, imageCol string) func(Row, string) string {
	hasColumn := func(name string) bool {
		for _, h := range headers {
			if h == name {
				return true
			}
		}
		return false
	}

	if hasColumn("id") {
		allNull := true
		for _, row := range rows {
			if !isNullLike(row["id"]) {
				allNull = false
				break
			}
		}
		if !allNull {
			return func(row Row, imageURL string) string {
				if v := strings.TrimSpace(row["id"]); !isNullLike(v) {
					return v
				}
				return filenameStem(imageURL)
			}
		}
	}

	if hasColumn("sku") {
		anyValue := false
		for _, row := range rows {
			if strings.TrimSpace(row["sku"]) != "" {
				anyValue = true
				break
			}
		}
		if anyValue {
			return func(row Row, _ string) string {
				return strings.TrimSpace(row["sku"])
			}
		}
	}

	return func(_ Row, imageURL string) string {
		return filenameStem(imageURL)
	}
}

func isNullLike(v string) bool {
	_, ok := nullLikeTokens[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

// filenameStem возвращает имя файла источника без расширения.
func filenameStem(source string) string {
	s := strings.TrimSpace(source)
	if s == "" {
		return ""
	}

	base := path.Base(strings.ReplaceAll(s, "\\", "/"))
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}
