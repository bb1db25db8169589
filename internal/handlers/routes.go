package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers the URL shortener routes.
func RegisterRoutes(api huma.API, urlHandler *URLHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-short-url",
		Method:        http.MethodPost,
		Path:          "/shorten",
		Summary:       "Create short URL",
		Description:   "Allocates a short code for an http or https URL.",
		Tags:          []string{"URLs"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError, http.StatusServiceUnavailable},
	}, urlHandler.CreateShortURL)

	huma.Register(api, huma.Operation{
		OperationID: "redirect-to-url",
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Redirect to original URL",
		Description: "Redirects to the original URL associated with the short code.",
		Tags:        []string{"URLs"},
		Errors:      []int{http.StatusNotFound, http.StatusServiceUnavailable},
	}, urlHandler.RedirectToURL)
}
