package httpapi

// QueryRequest and QueryResponse mirror the shapes oapi-codegen would emit
// from openapi.yaml's QueryRequest/QueryResponse schemas; hand-written here
// since the generator isn't run as part of the build.
type QueryRequest struct {
	Question string `json:"question"`
}

type QueryResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}
