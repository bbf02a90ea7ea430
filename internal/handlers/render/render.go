package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const (
	ValidationErrorType = "validation_failed"
	DecodingErrorType   = "decoding_failed"
	ServiceErrorType    = "service_error"
)

// Credentials are small JSON documents
const maxBodyBytes = 64 << 10

var validate = validator.New()

func init() {
	configureValidator(validate)
}

var errTrailingData = errors.New("body must contain a single JSON object")

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	jsonWithStatus(w, data, http.StatusOK)
}

func ServiceError(w http.ResponseWriter, message string, code int) {
	jsonWithStatus(w, ErrorResponse{Error: ServiceErrorType, Message: message}, code)
}

// DecodeError renders why request body could not be read into a value
func DecodeError(w http.ResponseWriter, err error) {
	code := http.StatusBadRequest
	var (
		message   string
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
		sizeErr   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &sizeErr):
		code = http.StatusRequestEntityTooLarge
		message = fmt.Sprintf("Request body is too large (maximum %d bytes)", sizeErr.Limit)
	case errors.As(err, &typeErr):
		message = fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	case errors.As(err, &syntaxErr):
		message = fmt.Sprintf("Malformed JSON at position %d", syntaxErr.Offset)
	case errors.Is(err, io.EOF):
		message = "Request body is empty"
	case errors.Is(err, io.ErrUnexpectedEOF):
		message = "Request body is truncated"
	case errors.Is(err, errTrailingData):
		message = "Request body must contain a single JSON object"
	default:
		message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	jsonWithStatus(w, ErrorResponse{Error: DecodingErrorType, Message: message}, code)
}

func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	response := ErrorResponse{
		Error:   ValidationErrorType,
		Message: "Request validation failed",
		Fields:  make(map[string]string, len(errs)),
	}

	for _, fieldError := range errs {
		response.Fields[fieldError.Field()] = validationMessage(fieldError)
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

// BindAndValidate decodes JSON request body into T and validates it with struct tags.
// On failure the error response is already written, caller should just return.
func BindAndValidate[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	return bind[T](w, r, false)
}

// BindAndValidateOptional is BindAndValidate for requests where body may be omitted.
// Empty body (whatever Content-Length or Transfer-Encoding says) gives zero T and no error.
func BindAndValidateOptional[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	return bind[T](w, r, true)
}

func bind[T any](w http.ResponseWriter, r *http.Request, optional bool) (T, error) {
	var value T

	if err := decode(w, r, &value); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return value, nil
		}
		DecodeError(w, err)
		return value, err
	}

	if err := validate.Struct(value); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return value, err
		}
		ValidationErrors(w, errs)
		return value, err
	}

	return value, nil
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}

// jsonWithStatus sends data as json with the given status.
// Responses may carry credentials so they must never be cached.
func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
