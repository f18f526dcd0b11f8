package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akaoio/rkllmd/internal/engine"
	"github.com/akaoio/rkllmd/internal/runtime"
	"github.com/akaoio/rkllmd/pkg/types"
)

// Service defines the engine methods required by the HTTP API layer.
type Service interface {
	Generate(ctx context.Context, params types.InferenceParams) (types.InferenceResult, error)
	GenerateStreamAsync(ctx context.Context, params types.InferenceParams, cb engine.StreamCallback) (*engine.ResultFuture, error)
	GenerateBatch(ctx context.Context, requests []types.BatchRequest) ([]types.BatchResult, error)
	Pause()
	Resume()
	Stop()
	Status() types.StatusResponse
	GetStats() types.Stats
	ResetStats()
	Defaults() types.InferenceParams
}

// streamLine is one NDJSON line of a streamed generation.
type streamLine struct {
	Fragment string `json:"fragment,omitempty"`
	Last     bool   `json:"last,omitempty"`
	Done     bool   `json:"done,omitempty"`
	Result   *types.InferenceResult `json:"result,omitempty"`
}

// mergeParams overlays request fields onto the engine defaults. Zero-valued
// numeric and string fields fall back to the defaults; booleans and stop
// sequences are taken from the request as-is.
func mergeParams(def types.InferenceParams, req types.InferenceParams) types.InferenceParams {
	out := req
	if out.MaxTokens == 0 {
		out.MaxTokens = def.MaxTokens
	}
	if out.Temperature == 0 {
		out.Temperature = def.Temperature
	}
	if out.TopP == 0 {
		out.TopP = def.TopP
	}
	if out.TopK == 0 {
		out.TopK = def.TopK
	}
	if out.RepetitionPenalty == 0 {
		out.RepetitionPenalty = def.RepetitionPenalty
	}
	if out.BatchSize == 0 {
		out.BatchSize = def.BatchSize
	}
	if out.StreamBatchSize == 0 {
		out.StreamBatchSize = def.StreamBatchSize
	}
	if out.Seed == 0 {
		out.Seed = def.Seed
	}
	return out
}

// NewMux builds the HTTP handler for the daemon.
func NewMux(svc Service, models []types.Model) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: models}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.GetStats()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Post("/stats/reset", func(w http.ResponseWriter, r *http.Request) {
		svc.ResetStats()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/pause", func(w http.ResponseWriter, r *http.Request) {
		svc.Pause()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/resume", func(w http.ResponseWriter, r *http.Request) {
		svc.Resume()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/stop", func(w http.ResponseWriter, r *http.Request) {
		svc.Stop()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		handleGenerate(svc, w, r)
	})

	r.Post("/batch", func(w http.ResponseWriter, r *http.Request) {
		handleBatch(svc, w, r)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		st := svc.Status()
		if st.Model != nil && st.State != string(types.StateError) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// mapEngineError translates engine error taxonomy to HTTP status codes.
func mapEngineError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsConfiguration(err), engine.IsInvalidArgument(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case engine.IsTooBusy(err):
		IncrementBackpressure("engine")
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	case engine.IsEngineState(err), runtime.IsUnavailable(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func handleGenerate(svc Service, w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	params := mergeParams(svc.Defaults(), req.InferenceParams)
	lvl := requestLogLevel(r)
	start := time.Now()
	logGenerate(lvl, r, "generate start")

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	if !params.Stream {
		res, err := svc.Generate(ctx, params)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			mapEngineError(w, err)
			logGenerateEnd(lvl, r, start, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(res); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
		logGenerateEnd(lvl, r, start, nil)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	var sink io.Writer = w
	if lvl >= LevelDebug {
		sink = io.MultiWriter(w, &loggingLineWriter{})
	}
	enc := json.NewEncoder(sink)
	cb := func(frag string, isLast bool) {
		if err := enc.Encode(streamLine{Fragment: frag, Last: isLast}); err != nil {
			// Client gone: cancel so the engine stops at the next fragment.
			cancel()
			return
		}
		if flush != nil {
			flush()
		}
	}
	fut, err := svc.GenerateStreamAsync(ctx, params, cb)
	if err != nil {
		mapEngineError(w, err)
		logGenerateEnd(lvl, r, start, err)
		return
	}
	res, err := fut.Wait(context.Background())
	if err != nil {
		// Headers are out already; emit an error line instead of a status.
		_ = enc.Encode(types.ErrorResponse{Error: err.Error(), Code: http.StatusInternalServerError})
		logGenerateEnd(lvl, r, start, err)
		return
	}
	_ = enc.Encode(streamLine{Done: true, Result: &res})
	if flush != nil {
		flush()
	}
	logGenerateEnd(lvl, r, start, nil)
}

func handleBatch(svc Service, w http.ResponseWriter, r *http.Request) {
	var req types.BatchGenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// Merge defaults per item so sparse payloads behave like /generate.
	def := svc.Defaults()
	for i := range req.Requests {
		req.Requests[i].Params = mergeParams(def, req.Requests[i].Params)
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	results, err := svc.GenerateBatch(ctx, req.Requests)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		mapEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(types.BatchGenerateResponse{Results: results}); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

func logGenerate(lvl LogLevel, r *http.Request, msg string) {
	if lvl < LevelInfo {
		return
	}
	if zlog != nil {
		z := zlog.Info().Str("path", r.URL.Path)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Msg(msg)
		return
	}
	log.Printf("%s path=%s", msg, r.URL.Path)
}

func logGenerateEnd(lvl LogLevel, r *http.Request, start time.Time, err error) {
	if lvl < LevelInfo {
		return
	}
	if zlog != nil {
		z := zlog.Info().Str("path", r.URL.Path).Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		if err != nil {
			z = z.Err(err)
		}
		z.Msg("generate end")
		return
	}
	log.Printf("generate end path=%s dur=%s err=%v", r.URL.Path, time.Since(start), err)
}
