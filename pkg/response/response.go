package response

// Response is the envelope every API endpoint returns.
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success wraps data in a success envelope.
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error wraps an error message in an error envelope.
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// List wraps one page of a collection together with its paging metadata.
// The items appear under the given key so each endpoint keeps its own
// payload name.
func List(statusCode int, key string, items interface{}, total int64, page, limit int) Response {
	return Success(statusCode, map[string]interface{}{
		key:     items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}
