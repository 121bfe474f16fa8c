package domain

// Product описывает каноническую запись каталога.
// Все значения хранятся строками как в исходном CSV; пустая строка означает отсутствие значения.
type Product struct {
	ID          string
	ImageURL    string // URL, локальный путь или minio://bucket/key
	Name        string
	Price       string
	Brand       string
	Description string
}
