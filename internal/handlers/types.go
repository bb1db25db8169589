package handlers

// CreateShortURLRequest carries the raw request body. It is decoded in the handler so that a
// malformed body or a non-string url is a 400 rather than a schema error.
type CreateShortURLRequest struct {
	RawBody []byte `contentType:"application/json"`
}

// ShortenBody is the expected JSON shape of the create request.
type ShortenBody struct {
	URL any `json:"url"`
}

// CreateShortURLResponse is the response for a successfully created short URL.
type CreateShortURLResponse struct {
	Location string `doc:"The short URL location" header:"Location"`
	Body     struct {
		ShortURL    string `doc:"The full short URL" example:"http://short.ly/abc123"             json:"short_url"`
		OriginalURL string `doc:"The original URL"   example:"https://example.com/very/long/path" json:"original_url"`
		Code        string `doc:"The short code"     example:"abc123"                             json:"code"`
	}
}

// RedirectRequest is the request for redirecting a short URL.
type RedirectRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`
}

// RedirectResponse sends the client to the original URL.
type RedirectResponse struct {
	Status   int
	Location string `doc:"The original URL" header:"Location"`
}
