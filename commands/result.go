// Package commands implements the worker fleet's command and query
// handlers: one function per write or read operation exposed to the admin
// server and the scheduler's jobs, each returning a uniform result
// envelope instead of an HTTP response directly.
package commands

// Result is the uniform status_code/data/detail envelope every handler
// returns, independent of any particular transport.
type Result struct {
	StatusCode int
	Data       any
	Detail     string
}

func ok(data any) Result                  { return Result{StatusCode: 200, Data: data} }
func created(data any) Result             { return Result{StatusCode: 201, Data: data} }
func badRequest(detail string) Result     { return Result{StatusCode: 400, Detail: detail} }
func notFound(detail string) Result       { return Result{StatusCode: 404, Detail: detail} }
func internalError(detail string) Result  { return Result{StatusCode: 500, Detail: detail} }

// fromErr maps an apperr.Error (or any other error) to a Result, using
// isQuery to resolve not-found's 400/404 split.
func fromErr(err error, isQuery bool) Result {
	if ae, ok := asAppErr(err); ok {
		return Result{StatusCode: ae.StatusCode(isQuery), Detail: ae.Error()}
	}
	return internalError(err.Error())
}
