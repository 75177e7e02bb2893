package resolver

import "fmt"

// FieldError reports one field's resolution failure, part of the
// caller-visible resolution-result contract (spec.md §6:
// "errors: [{fieldName, code, message}]").
type FieldError struct {
	FieldName string
	Code      string
	Message   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", e.Code, e.FieldName, e.Message)
}

const (
	codeFieldNotFound       = "FIELD_NOT_FOUND"
	codeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	codeMappingError        = "MAPPING_ERROR"
	codeConversionError     = "CONVERSION_ERROR"
	codeDataServiceError    = "DATA_SERVICE_ERROR"
	codeCalculatorError     = "CALCULATOR_ERROR"
	codeTimeout             = "TIMEOUT"
	codeProcessingError     = "PROCESSING_ERROR"
)
