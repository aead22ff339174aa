package respond

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	applog "github.com/janisto/allstar-api/internal/platform/logging"
	appmiddleware "github.com/janisto/allstar-api/internal/platform/middleware"
)

const (
	msgNotFound          = "resource not found"
	msgInternalServerErr = "internal server error"

	contentTypeProblemJSON = "application/problem+json"
	contentTypeProblemCBOR = "application/problem+cbor"
)

// NotFoundHandler renders a 404 problem document.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteProblem(w, r, http.StatusNotFound, msgNotFound)
	}
}

// MethodNotAllowedHandler renders a 405 problem document and lists the
// methods the matched path does accept in the Allow header.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allow := allowedMethods(r); len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
		}
		WriteProblem(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
	}
}

// Recoverer turns panics into 500 problem documents. If the handler already
// started the response the status line cannot change, so the panic is only logged.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				applog.LogError(r.Context(), "panic recovered", err,
					zap.String("traceId", applog.TraceIDFromContext(r.Context())),
					zap.ByteString("stack", debug.Stack()),
				)
				if rw.wroteHeader {
					return
				}
				WriteProblem(rw, r, http.StatusInternalServerError, msgInternalServerErr)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// WriteProblem writes an RFC 9457 problem document, as CBOR when the client
// prefers it and as JSON otherwise.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	problem := &huma.ErrorModel{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}

	var (
		body []byte
		err  error
		ct   string
	)
	if selectFormat(r.Header.Get("Accept")) {
		ct = contentTypeProblemCBOR
		body, err = cbor.Marshal(problem)
	} else {
		ct = contentTypeProblemJSON
		body, err = marshalJSON(problem)
	}
	if err != nil {
		applog.LogError(r.Context(), "failed to encode problem", err, zap.Int("status", status))
		http.Error(w, http.StatusText(status), status)
		return
	}

	h := w.Header()
	h.Set("Content-Type", ct)
	appmiddleware.AddVary(h, "Origin", "Accept")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		applog.LogWarn(r.Context(), "failed to write problem", zap.Error(err))
	}
}

func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// allowedMethods asks chi which methods are routed for the request path.
func allowedMethods(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return nil
	}

	routePath := rctx.RoutePath
	if routePath == "" {
		if r.URL.RawPath != "" {
			routePath = r.URL.RawPath
		} else {
			routePath = r.URL.Path
		}
		if routePath == "" {
			routePath = "/"
		}
	}

	candidates := []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
	var allowed []string
	for _, method := range candidates {
		if rctx.Routes.Match(chi.NewRouteContext(), method, routePath) {
			allowed = append(allowed, method)
		}
	}
	return allowed
}

// responseWriter records whether the response has been started.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

type mediaRange struct {
	typ     string
	subtype string
	q       float64
}

// parseAccept parses an Accept header into media ranges. Malformed or
// out-of-range q values fall back to 1; a bare type means type/*.
func parseAccept(header string) []mediaRange {
	var ranges []mediaRange
	for part := range strings.SplitSeq(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		params := strings.Split(part, ";")
		media := strings.ToLower(strings.TrimSpace(params[0]))
		mr := mediaRange{q: 1}
		if typ, sub, ok := strings.Cut(media, "/"); ok {
			mr.typ, mr.subtype = typ, sub
		} else {
			mr.typ, mr.subtype = media, "*"
		}
		for _, p := range params[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(k), "q") {
				continue
			}
			if q, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && q >= 0 && q <= 1 {
				mr.q = q
			} else {
				mr.q = 1
			}
		}
		ranges = append(ranges, mr)
	}
	return ranges
}

// quality returns the q value of the most specific range matching
// application/<suffix> or application/problem+<suffix>, or -1 if none matches.
func quality(ranges []mediaRange, suffix string) float64 {
	best, bestSpecificity := -1.0, -1
	for _, mr := range ranges {
		specificity := -1
		switch {
		case mr.typ == "application" && (mr.subtype == suffix || mr.subtype == "problem+"+suffix):
			specificity = 3
		case mr.typ == "application" && mr.subtype == "*+"+suffix:
			specificity = 2
		case mr.typ == "application" && mr.subtype == "*":
			specificity = 1
		case mr.typ == "*" && mr.subtype == "*":
			specificity = 0
		}
		if specificity > bestSpecificity {
			best, bestSpecificity = mr.q, specificity
		}
	}
	return best
}

// selectFormat reports whether CBOR should be used. JSON wins ties and is the
// default when neither format is acceptable.
func selectFormat(accept string) bool {
	if accept == "" {
		return false
	}
	ranges := parseAccept(accept)
	qCBOR := quality(ranges, "cbor")
	return qCBOR > 0 && qCBOR > quality(ranges, "json")
}
