package httpapi

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

// schemaValidator validates decoded request bodies against openapi.yaml's
// component schemas, so a malformed request is rejected the same way it
// would be against the published contract.
type schemaValidator struct {
	queryRequest *openapi3.Schema
}

func loadSchemaValidator() (*schemaValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}

	schemaRef, ok := doc.Components.Schemas["QueryRequest"]
	if !ok || schemaRef.Value == nil {
		return nil, fmt.Errorf("openapi spec missing QueryRequest schema")
	}
	return &schemaValidator{queryRequest: schemaRef.Value}, nil
}

// ValidateQueryRequest checks a decoded request body against the
// QueryRequest JSON schema (required "question", 1-2000 chars).
func (v *schemaValidator) ValidateQueryRequest(body map[string]any) error {
	return v.queryRequest.VisitJSON(body)
}
