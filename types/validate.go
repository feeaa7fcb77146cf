package types

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationError lists the schema violations found in a set of values.
type ValidationError struct {
	Errors []ValidationErrorDetail
}

type ValidationErrorDetail struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

func (err ValidationError) Error() string {
	return fmt.Sprintf("validation issues: %+v", err.Errors)
}

// ValidateValues checks structured payload values against a JSON schema
// document. A ValidationError is returned when the values do not conform.
func ValidateValues(schema []byte, vs Values) error {
	doc, err := vs.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "error encoding values")
	}
	return ValidateJSON(schema, doc)
}

// ValidateJSON checks a JSON document against a JSON schema document.
func ValidateJSON(schema, doc []byte) error {
	res, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return errors.Wrap(err, "error validating document")
	}
	if res.Valid() {
		return nil
	}
	verr := ValidationError{}
	for _, item := range res.Errors() {
		verr.Errors = append(verr.Errors, ValidationErrorDetail{
			Message: item.Description(),
			Path:    item.Field(),
		})
	}
	return verr
}
