package olap

import "fmt"

// QueryError is returned by Execute when the engine rejects or fails a query.
type QueryError struct {
	// Name is the builder name given to NewQueryBuilder.
	Name string
	// QueryID is the ID sent to the engine, empty if the query never left
	// the process.
	QueryID string
	Err     error
}

func (e *QueryError) Error() string {
	if e.QueryID == "" {
		return fmt.Sprintf("query %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("query %s (%s): %v", e.Name, e.QueryID, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
