package allstar

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Register wires the test route into the provided API router.
func Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-test",
		Method:      http.MethodGet,
		Path:        "/test",
		Summary:     "Return the All Star message",
		Tags:        []string{"test"},
	}, getHandler)
}

func getHandler(_ context.Context, _ *struct{}) (*GetOutput, error) {
	return &GetOutput{Body: Data{Message: Message}}, nil
}
