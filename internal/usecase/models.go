package usecase

// MATCHER USECASE

// SearchReq — запрос поиска визуально похожих товаров.
// Источник запроса — либо ImageURL (URL/путь), либо FileData (загруженный файл), но не оба сразу.
type SearchReq struct {
	ImageURL      string
	FileData      []byte
	FileName      string
	TopK          int
	MinSimilarity float64
}

// QueryMeta описывает источник изображения запроса в ответе.
type QueryMeta struct {
	Source   string `json:"source"`
	Value    string `json:"value,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// SearchItem — один результат поиска с оценкой близости и полями продукта.
type SearchItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ImageURL    string  `json:"image_url"`
	Price       any     `json:"price,omitempty"` // число, если цена парсится, иначе исходная строка
	Brand       string  `json:"brand,omitempty"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score"`
}

// SearchRes — ответ поиска.
type SearchRes struct {
	Query QueryMeta    `json:"query"`
	Count int          `json:"count"`
	Items []SearchItem `json:"items"`
}

// BuildIndexRes — сводка пересборки индекса.
type BuildIndexRes struct {
	Status  string `json:"status"`
	Count   int    `json:"count"`
	Skipped int    `json:"skipped"`
}

// HealthRes — состояние сервиса.
type HealthRes struct {
	OK          bool     `json:"ok"`
	Rows        int      `json:"rows"`
	Indexed     int      `json:"indexed"`
	Device      string   `json:"device"`
	CSVExists   bool     `json:"csv_exists"`
	IndexExists bool     `json:"index_exists"`
	IDsExists   bool     `json:"ids_exists"`
	CORSOrigins []string `json:"cors_origins"`
}

// INFRASTRUCTURE

// IndexRebuiltEvent — событие успешной пересборки индекса для внешних потребителей.
type IndexRebuiltEvent struct {
	EventID        string `json:"event_id"`
	EventTimestamp int64  `json:"event_timestamp"`
	Count          int    `json:"count"`
	Skipped        int    `json:"skipped"`
	Dim            int    `json:"dim"`
}

// recordOutcome — типизированный результат обработки одной записи каталога при сборке индекса.
// Ровно одно из полей Vector/Err заполнено.
type recordOutcome struct {
	ID     string
	Vector []float32
	Stage  string // "fetch" или "extract"
	Err    error
}

// MAPPERS

func NewSearchReq(imageURL string, fileData []byte, fileName string, topK int, minSimilarity float64) *SearchReq {
	return &SearchReq{
		ImageURL:      imageURL,
		FileData:      fileData,
		FileName:      fileName,
		TopK:          topK,
		MinSimilarity: minSimilarity,
	}
}

func NewBuildIndexRes(count int, skipped int) *BuildIndexRes {
	return &BuildIndexRes{
		Status:  "index built",
		Count:   count,
		Skipped: skipped,
	}
}
