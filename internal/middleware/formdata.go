package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

// FormPayload turns the text fields of a multipart request into a JSON
// document. Values that parse as JSON (objects, arrays, numbers, booleans)
// are decoded, everything else stays a string. A field named payload holding
// a JSON object is merged first so clients can send the whole body at once.
func FormPayload() gin.HandlerFunc {
	return func(c *gin.Context) {
		form := c.Request.MultipartForm
		if form == nil {
			c.Next()
			return
		}
		doc := make(map[string]interface{}, len(form.Value))
		raw := make(map[string]string, len(form.Value))
		if values := form.Value["payload"]; len(values) > 0 {
			if err := json.Unmarshal([]byte(values[0]), &doc); err != nil {
				response.AbortError(c, appErrors.Clone(appErrors.ErrValidation, "el campo payload no es JSON válido"))
				return
			}
		}
		for key, values := range form.Value {
			if key == "payload" || len(values) == 0 {
				continue
			}
			raw[key] = values[0]
			doc[key] = coerce(values[0])
		}
		c.Set(contextPayloadKey, formPayload{doc: doc, raw: raw})
		c.Next()
	}
}

type formPayload struct {
	doc map[string]interface{}
	raw map[string]string
}

func coerce(value string) interface{} {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return value
	}
	switch trimmed[0] {
	case '{', '[', 't', 'f', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var decoded interface{}
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err == nil && !dec.More() {
			return decoded
		}
	}
	return value
}

// Bind decodes the request into dst: the coerced multipart payload when
// present, otherwise the JSON body. A coerced scalar that does not fit its
// target field is retried as the original string so that numeric looking
// identifiers keep binding to string fields.
func Bind(c *gin.Context, dst interface{}) error {
	value, ok := c.Get(contextPayloadKey)
	if !ok {
		if err := c.ShouldBindJSON(dst); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "cuerpo JSON inválido")
		}
		return nil
	}
	payload := value.(formPayload)
	doc := make(map[string]interface{}, len(payload.doc))
	for k, v := range payload.doc {
		doc[k] = v
	}
	for attempt := 0; attempt <= len(payload.raw); attempt++ {
		body, err := json.Marshal(doc)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "formulario inválido")
		}
		err = json.NewDecoder(bytes.NewReader(body)).Decode(dst)
		if err == nil {
			return nil
		}
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return appErrors.Clone(appErrors.ErrValidation, "formulario inválido")
		}
		original, isRaw := payload.raw[typeErr.Field]
		if current, isString := doc[typeErr.Field].(string); !isRaw || (isString && current == original) {
			return appErrors.Clone(appErrors.ErrValidation, "tipo inválido en "+typeErr.Field)
		}
		doc[typeErr.Field] = original
	}
	return appErrors.Clone(appErrors.ErrValidation, "formulario inválido")
}
