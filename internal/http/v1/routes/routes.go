package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/allstar-api/internal/http/v1/allstar"
)

// Register wires all HTTP routes into the provided API router.
func Register(api huma.API) {
	allstar.Register(api)
}
