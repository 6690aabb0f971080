package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"

	"github.com/barguni/barguni-api/internal/apperr"
	"github.com/barguni/barguni-api/internal/http/apierr"
)

// OpenAPIValidator rejects requests under basePath that do not match doc.
// Paths in doc are relative to basePath; doc.Servers is ignored. Requests for
// paths the document does not describe pass through untouched.
func OpenAPIValidator(doc *openapi3.T, basePath string, log *slog.Logger) (func(http.Handler) http.Handler, error) {
	routed := *doc
	routed.Servers = nil

	router, err := legacyrouter.NewRouter(&routed)
	if err != nil {
		return nil, err
	}

	opts := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path, ok := strings.CutPrefix(r.URL.Path, basePath)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			vr := *r
			u := *r.URL
			u.Path = path
			u.RawPath = ""
			vr.URL = &u

			route, pathParams, err := router.FindRoute(&vr)
			if err != nil {
				// unknown routes are answered by the router itself
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    &vr,
				PathParams: pathParams,
				Route:      route,
				Options:    opts,
			}
			err = openapi3filter.ValidateRequest(r.Context(), input)
			// the validator consumes and replaces the body
			r.Body = vr.Body
			if err != nil {
				res := apierr.New(apperr.ValidationErr.WrapParent(requestErrorReason(err)))
				log.InfoContext(r.Context(), "request rejected by openapi validation", slog.Any("error", err))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(res.StatusCode)
				//nolint:errcheck
				json.NewEncoder(w).Encode(res)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// requestErrorReason drops the schema dump kin-openapi appends to its errors.
func requestErrorReason(err error) error {
	var reqErr *openapi3filter.RequestError
	if !errors.As(err, &reqErr) {
		return errors.New("request does not match the api contract")
	}

	if reqErr.Parameter != nil {
		return errors.New(reqErr.Parameter.Name + ": " + parameterReason(reqErr))
	}

	var schemaErr *openapi3.SchemaError
	if errors.As(reqErr.Err, &schemaErr) {
		return errors.New("body: " + schemaErr.Reason)
	}
	if reqErr.Reason != "" {
		return errors.New("body: " + reqErr.Reason)
	}
	return errors.New("request does not match the api contract")
}

func parameterReason(reqErr *openapi3filter.RequestError) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(reqErr.Err, &schemaErr) {
		return schemaErr.Reason
	}
	if reqErr.Reason != "" {
		return reqErr.Reason
	}
	return "is invalid"
}
