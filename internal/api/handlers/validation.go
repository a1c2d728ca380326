// validation.go — разбор и проверка тел запросов (go-playground/validator).
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// maxJSONBody — лимит тела JSON-запроса.
const maxJSONBody = 1 << 20

// errEmptyBody — тело запроса пустое.
var errEmptyBody = errors.New("пустое тело запроса")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator возвращает общий экземпляр валидатора.
// Имена полей в ошибках берутся из json-тегов.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// decodeJSON читает тело запроса в dst и проверяет теги validate.
// Ошибка содержит сообщение для клиента.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errEmptyBody
		case errors.As(err, &maxErr):
			return fmt.Errorf("тело запроса больше %d байт", maxErr.Limit)
		default:
			return fmt.Errorf("некорректный JSON: %w", err)
		}
	}
	return validateStruct(dst)
}

// decodeOptionalJSON — как decodeJSON, но пустое тело допустимо.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	err := decodeJSON(w, r, dst)
	if errors.Is(err, errEmptyBody) {
		return validateStruct(dst)
	}
	return err
}

// validateStruct проверяет структуру и собирает понятное сообщение.
func validateStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, translateError(fe))
	}
	return errors.New(strings.Join(messages, "; "))
}

// translateError переводит ошибку поля в сообщение для клиента.
func translateError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	param := fe.Param()
	isString := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return field + ": обязательное поле"
	case "email":
		return field + ": некорректный email"
	case "uuid":
		return field + ": ожидается UUID"
	case "url", "http_url":
		return field + ": некорректный URL"
	case "oneof":
		return fmt.Sprintf("%s: допустимые значения: %s", field, param)
	case "numeric":
		return field + ": допускаются только цифры"
	case "min":
		if isString {
			return fmt.Sprintf("%s: не короче %s символов", field, param)
		}
		return fmt.Sprintf("%s: не меньше %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s: не длиннее %s символов", field, param)
		}
		return fmt.Sprintf("%s: не больше %s", field, param)
	default:
		return fmt.Sprintf("%s: не прошло проверку %s", field, fe.Tag())
	}
}
