package http

import (
	"mime"
	"net/http"

	"github.com/utafrali/brandcatalog/pkg/httputil"
)

// ContentTypeJSON rejects request bodies that are neither JSON nor
// multipart/form-data (logo and CSV uploads).
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut {
			if ct := r.Header.Get("Content-Type"); ct != "" {
				mt, _, err := mime.ParseMediaType(ct)
				if err != nil || (mt != "application/json" && mt != "multipart/form-data") {
					httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
						Error: &httputil.ErrorResponse{
							Code:    "UNSUPPORTED_MEDIA_TYPE",
							Message: "Content-Type must be application/json or multipart/form-data",
						},
					})
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
