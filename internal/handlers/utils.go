package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/models"
)

// ErrorResponse представляет структуру ответа с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSONResponse отправляет JSON ответ
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeErrorResponse отправляет ответ с ошибкой
func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	writeJSONResponse(w, statusCode, response)
}

// NotFound отвечает 404 на неизвестный маршрут
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeErrorResponse(w, http.StatusNotFound, "Not found")
}

// writeDomainError выбирает HTTP статус по типу доменной ошибки
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errs.IsValidation(err):
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errs.IsNotFound(err):
		writeErrorResponse(w, http.StatusNotFound, err.Error())
	default:
		writeErrorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSONBody разбирает тело запроса; ошибка разбора считается ошибкой валидации
func decodeJSONBody(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return errs.NewValueIsInvalidErrorWithCause("body", err)
	}
	return nil
}

// extractIDFromPath извлекает идентификатор из пути URL
func extractIDFromPath(path, prefix string) (string, error) {
	if !strings.HasPrefix(path, prefix) {
		return "", fmt.Errorf("invalid path format")
	}

	// Убираем префикс и возможный суффикс (например, /status)
	id := strings.TrimPrefix(path, prefix)
	if idx := strings.Index(id, "/"); idx != -1 {
		id = id[:idx]
	}

	if id == "" {
		return "", fmt.Errorf("missing ID in path")
	}
	return id, nil
}

// requireCoordinate собирает обязательную точку из необязательных полей запроса
func requireCoordinate(lat, lon *float64) (models.Coordinate, error) {
	coord, err := models.CoordinateFromPair(lat, lon)
	if err != nil {
		return models.Coordinate{}, err
	}
	if coord == nil {
		return models.Coordinate{}, errs.NewValueIsRequiredError("latitude")
	}
	return *coord, nil
}
