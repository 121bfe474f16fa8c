package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/DRSN-tech/visual-matcher/internal/usecase"
	"github.com/DRSN-tech/visual-matcher/pkg/e"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// ToHTTPResponse переводит ошибку уровня usecase в HTTP-статус и сообщение.
// 422 — некорректные параметры запроса; 400 — нечитаемое изображение запроса
// или несобранный индекс; 409 — уже идущая сборка; остальное — 500.
func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrMinSimilarityRange):
		return http.StatusUnprocessableEntity, e.ErrMinSimilarityRange.Error()
	case errors.Is(err, e.ErrInvalidTopK):
		return http.StatusUnprocessableEntity, e.ErrInvalidTopK.Error()
	case errors.Is(err, e.ErrMissingQueryImage):
		return http.StatusUnprocessableEntity, e.ErrMissingQueryImage.Error()
	case errors.Is(err, e.ErrBothQuerySources):
		return http.StatusUnprocessableEntity, e.ErrBothQuerySources.Error()
	case errors.Is(err, e.ErrExpectedForm):
		return http.StatusUnprocessableEntity, e.ErrExpectedForm.Error()
	case errors.Is(err, e.ErrIndexNotReady):
		return http.StatusBadRequest, "index not built — call /build_index first"
	case errors.Is(err, e.ErrFetchFailed),
		errors.Is(err, e.ErrDecodeFailed),
		errors.Is(err, e.ErrImageNotFound):
		return http.StatusBadRequest, "failed to load query image: " + err.Error()
	case errors.Is(err, e.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, e.ErrFileTooLarge.Error()
	case errors.Is(err, e.ErrBuildInProgress):
		return http.StatusConflict, e.ErrBuildInProgress.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	WriteErrorMessage(w, code, msg)
}

func WriteErrorMessage(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ensureForm разбирает тело запроса: multipart/form-data или application/x-www-form-urlencoded.
// Нечитаемое тело формы — та же ошибка валидации, что и чужой Content-Type.
func ensureForm(r *http.Request, maxMemory int64) error {
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return e.Wrap(err.Error(), e.ErrExpectedForm)
		}
		return nil
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return e.Wrap(err.Error(), e.ErrExpectedForm)
		}
		return nil
	default:
		return e.Wrap(contentType, e.ErrExpectedForm)
	}
}

// parseSearchForm собирает запрос поиска из полей формы.
// Ровно один источник изображения: поле image_url либо загруженный файл.
func parseSearchForm(r *http.Request, maxFileSize int64) (*usecase.SearchReq, error) {
	const (
		defaultTopK          = 12
		defaultMinSimilarity = 0.0
	)

	imageURL := strings.TrimSpace(r.FormValue("image_url"))

	var (
		fileData []byte
		fileName string
	)
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["file"]; len(files) > 0 {
			data, err := readFile(files[0], maxFileSize)
			if err != nil {
				return nil, err
			}
			fileData = data
			fileName = files[0].Filename
		}
	}

	if imageURL == "" && len(fileData) == 0 {
		return nil, e.ErrMissingQueryImage
	}
	if imageURL != "" && len(fileData) > 0 {
		return nil, e.ErrBothQuerySources
	}

	topK := defaultTopK
	if v := strings.TrimSpace(r.FormValue("top_k")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, e.Wrap(v, e.ErrInvalidTopK)
		}
		topK = parsed
	}

	minSimilarity := defaultMinSimilarity
	if v := strings.TrimSpace(r.FormValue("min_similarity")); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, e.Wrap(v, e.ErrMinSimilarityRange)
		}
		minSimilarity = parsed
	}

	return usecase.NewSearchReq(imageURL, fileData, fileName, topK, minSimilarity), nil
}

func readFile(fh *multipart.FileHeader, maxSize int64) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, e.ErrInternalServerError
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, e.ErrInternalServerError
	}
	if int64(len(data)) > maxSize {
		return nil, e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	return data, nil
}
