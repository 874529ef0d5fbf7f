package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/onem2m/pkg/log"
	"github.com/cuemby/onem2m/pkg/metrics"
	"github.com/cuemby/onem2m/pkg/onem2m"
	"github.com/cuemby/onem2m/pkg/primitives"
	"github.com/cuemby/onem2m/pkg/rest"
)

// oneM2M HTTP binding headers.
const (
	HeaderOrigin            = "X-M2M-Origin"
	HeaderRequestIdentifier = "X-M2M-RI"
	HeaderStatusCode        = "X-M2M-RSC"
)

// Server is the HTTP reference binding: it maps HTTP exchanges onto request
// primitives and hands them to the processor. It also exposes /health,
// /ready and /metrics.
type Server struct {
	processor *rest.Processor
	mux       *http.ServeMux
	srv       *http.Server
	logger    zerolog.Logger
}

// NewServer creates the HTTP binding server.
func NewServer(processor *rest.Processor, health *Health) *Server {
	s := &Server{
		processor: processor,
		mux:       http.NewServeMux(),
		logger:    log.WithComponent("http-api"),
	}

	s.mux.HandleFunc("/health", health.healthHandler)
	s.mux.HandleFunc("/ready", health.readyHandler)
	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/", s.primitiveHandler)
	return s
}

// Start serves HTTP on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("http binding listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// primitiveHandler maps one HTTP exchange onto a request primitive:
// GET is RETRIEVE, POST is CREATE, PUT is UPDATE, DELETE is DELETE. The
// resource type of a CREATE rides in the Content-Type ty parameter or the
// ty query parameter.
func (s *Server) primitiveHandler(w http.ResponseWriter, r *http.Request) {
	req := primitives.NewRequest()
	req.SetAttr(primitives.Protocol, string(onem2m.ProtocolHTTP))
	req.SetAttr(primitives.ContentFormat, string(onem2m.ContentFormatJSON))
	req.SetAttr(primitives.To, r.URL.Path)

	switch r.Method {
	case http.MethodGet:
		req.SetAttr(primitives.Operation, string(onem2m.OperationRetrieve))
	case http.MethodPost:
		req.SetAttr(primitives.Operation, string(onem2m.OperationCreate))
		if ty := resourceTypeOf(r); ty != "" {
			req.SetAttr(primitives.ResourceType, ty)
		}
	case http.MethodPut:
		req.SetAttr(primitives.Operation, string(onem2m.OperationUpdate))
	case http.MethodDelete:
		req.SetAttr(primitives.Operation, string(onem2m.OperationDelete))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	from := r.Header.Get(HeaderOrigin)
	if from == "" {
		from = "/defaultOriginator"
	}
	req.SetAttr(primitives.From, from)

	rqi := r.Header.Get(HeaderRequestIdentifier)
	if rqi == "" {
		rqi = uuid.NewString()
	}
	req.SetAttr(primitives.RequestIdentifier, rqi)

	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "cannot read body", http.StatusBadRequest)
			return
		}
		if len(body) > 0 {
			req.SetAttr(primitives.Content, string(body))
		}
	}

	s.bindQuery(req, r)

	resp := s.processor.HandleRequest(req)
	s.writeResponse(w, resp)
}

// queryParams maps HTTP query parameter names onto primitive attributes.
// Multi-valued parameters (lbl, rty) may repeat.
var queryParams = map[string]string{
	"rcn":  primitives.ResultContent,
	"rt":   primitives.ResponseType,
	"drt":  primitives.DiscoveryResultType,
	"fu":   primitives.FilterCriteriaFilterUsage,
	"lim":  primitives.FilterCriteriaLimit,
	"off":  primitives.FilterCriteriaOffset,
	"crb":  primitives.FilterCriteriaCreatedBefore,
	"cra":  primitives.FilterCriteriaCreatedAfter,
	"ms":   primitives.FilterCriteriaModifiedSince,
	"us":   primitives.FilterCriteriaUnmodifiedSince,
	"sts":  primitives.FilterCriteriaStateTagSmaller,
	"stb":  primitives.FilterCriteriaStateTagBigger,
	"sza":  primitives.FilterCriteriaSizeAbove,
	"szb":  primitives.FilterCriteriaSizeBelow,
	"atr":  primitives.FilterCriteriaAttribute,
	"nm":   primitives.Name,
	"rqet": primitives.RequestExpirationTimestamp,
	"rset": primitives.ResultExpirationTimestamp,
}

var queryManyParams = map[string]string{
	"lbl": primitives.FilterCriteriaLabels,
	"rty": primitives.FilterCriteriaResourceType,
}

func (s *Server) bindQuery(req *primitives.Request, r *http.Request) {
	query := r.URL.Query()
	for param, attr := range queryParams {
		if v := query.Get(param); v != "" {
			req.SetAttr(attr, v)
		}
	}
	for param, attr := range queryManyParams {
		for _, v := range query[param] {
			req.AddMany(attr, v)
		}
	}
}

// resourceTypeOf extracts the ty of a CREATE from the Content-Type parameter
// (application/json;ty=3) or the ty query parameter.
func resourceTypeOf(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	for _, part := range strings.Split(ct, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "ty=") {
			return strings.TrimPrefix(part, "ty=")
		}
	}
	return r.URL.Query().Get("ty")
}

// writeResponse maps the response primitive back onto HTTP: the status code
// rides in X-M2M-RSC and picks the HTTP status, the content is the body.
func (s *Server) writeResponse(w http.ResponseWriter, resp *primitives.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderStatusCode, resp.RSC())
	if rqi := resp.Attr(primitives.RequestIdentifier); rqi != "" {
		w.Header().Set(HeaderRequestIdentifier, rqi)
	}
	w.WriteHeader(httpStatusOf(onem2m.StatusCode(resp.RSC())))

	if pc := resp.Attr(primitives.Content); pc != "" {
		_, _ = w.Write([]byte(pc))
	}
}

// httpStatusOf maps oneM2M status codes onto HTTP status codes per the HTTP
// binding.
func httpStatusOf(code onem2m.StatusCode) int {
	switch code {
	case onem2m.StatusOK, onem2m.StatusDeleted, onem2m.StatusChanged:
		return http.StatusOK
	case onem2m.StatusCreated:
		return http.StatusCreated
	case onem2m.StatusNotFound, onem2m.StatusTargetNotReachable:
		return http.StatusNotFound
	case onem2m.StatusOperationNotAllowed:
		return http.StatusMethodNotAllowed
	case onem2m.StatusConflict, onem2m.StatusAlreadyExists:
		return http.StatusConflict
	case onem2m.StatusAccessDenied:
		return http.StatusForbidden
	case onem2m.StatusNotImplemented, onem2m.StatusNonBlockingRequestNotSupported:
		return http.StatusNotImplemented
	case onem2m.StatusInternalServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
