package http

import (
	"errors"
	"net/http"

	"github.com/DRSN-tech/visual-matcher/internal/usecase"
	"github.com/DRSN-tech/visual-matcher/pkg/e"
	"github.com/DRSN-tech/visual-matcher/pkg/logger"
)

type MatcherHandler struct {
	matcherUsecase usecase.MatcherUC
	logger         logger.Logger
}

func NewMatcherHandler(matcherUsecase usecase.MatcherUC, logger logger.Logger) *MatcherHandler {
	return &MatcherHandler{matcherUsecase: matcherUsecase, logger: logger}
}

// health
//
//	@Summary		Состояние сервиса
//	@Description	Возвращает состояние каталога, индекса и модели
//	@Tags			matcher
//	@Produce		json
//	@Success		200	{object}	usecase.HealthRes
//	@Router			/health [get]
func (m *MatcherHandler) health(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, m.matcherUsecase.Health(r.Context()))
}

// buildIndex
//
//	@Summary		Пересборка индекса
//	@Description	Полностью пересобирает индекс эмбеддингов из каталога
//	@Tags			matcher
//	@Produce		json
//	@Success		200	{object}	usecase.BuildIndexRes
//	@Failure		409	{object}	ErrorResponse	"Сборка уже идёт"
//	@Failure		500	{object}	ErrorResponse	"Ошибка сборки"
//	@Router			/build_index [post]
func (m *MatcherHandler) buildIndex(w http.ResponseWriter, r *http.Request) {
	res, err := m.matcherUsecase.BuildIndex(r.Context())
	if err != nil {
		if errors.Is(err, e.ErrBuildInProgress) {
			m.logger.Warnf("%d build rejected: %s", http.StatusConflict, err.Error())
			WriteError(w, err)
			return
		}

		// Ошибка сборки возвращается клиенту с текстом причины
		m.logger.Errorf(err, "index build failed")
		WriteErrorMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteSuccess(w, http.StatusOK, res)
}

// search
//
//	@Summary		Поиск похожих товаров по изображению
//	@Description	Принимает image_url либо загруженный файл и возвращает ранжированные результаты
//	@Tags			matcher
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image_url		formData	string	false	"URL или путь изображения запроса"
//	@Param			file			formData	file	false	"Файл изображения запроса"
//	@Param			top_k			formData	integer	false	"Максимум результатов (по умолчанию 12)"
//	@Param			min_similarity	formData	number	false	"Порог близости в [0,1] (по умолчанию 0)"
//	@Success		200	{object}	usecase.SearchRes
//	@Failure		400	{object}	ErrorResponse	"Нечитаемое изображение или индекс не собран"
//	@Failure		422	{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/search [post]
func (m *MatcherHandler) search(w http.ResponseWriter, r *http.Request) {
	const (
		maxTotalRequestSize = 32 << 20
		maxMemory           = 16 << 20
		maxFileSize         = 15 << 20
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureForm(r, maxMemory); err != nil {
		m.logger.Warnf("%d %s: %s", http.StatusUnprocessableEntity, e.ErrExpectedForm.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	req, err := parseSearchForm(r, maxFileSize)
	if err != nil {
		m.logger.Warnf("%d invalid search request: %s", http.StatusUnprocessableEntity, err.Error())
		WriteError(w, err)
		return
	}

	res, err := m.matcherUsecase.Search(r.Context(), req)
	if err != nil {
		m.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, res)
}
