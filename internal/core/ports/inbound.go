package ports

import "context"

// QueryService is the single inbound contract for the query pipeline:
// run_query(text) -> string, exactly as named in the external interface
// contract. Errors returned here are always InternalError-kind; every
// other failure is recovered internally and reflected in the answer text.
type QueryService interface {
	RunQuery(ctx context.Context, text string) (string, error)
}
