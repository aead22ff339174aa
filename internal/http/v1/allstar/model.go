package allstar

// Message is the fixed text served by GET /test.
const Message = "Fiona is about to be an All Star"

// Data models the response payload for the test endpoint.
type Data struct {
	Message string `json:"message" doc:"Fixed greeting" example:"Fiona is about to be an All Star"`
}

// GetOutput wraps Data as the response body.
type GetOutput struct {
	Body Data
}
