package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/gchange/internal/export"
	"github.com/sells-group/gchange/internal/fetcher"
	"github.com/sells-group/gchange/internal/model"
	"github.com/sells-group/gchange/internal/nglist"
	"github.com/sells-group/gchange/internal/ngmatch"
	"github.com/sells-group/gchange/internal/pipeline"
	"github.com/sells-group/gchange/internal/reconcile"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP formatting service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env, serverOptionsFromConfig()),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// serverOptions holds the HTTP settings newRouter needs.
type serverOptions struct {
	RateLimit       float64
	RateBurst       int
	AllowedOrigins  []string
	MaxUploadBytes  int64
	IncludeExcluded bool
}

func serverOptionsFromConfig() serverOptions {
	return serverOptions{
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MaxUploadBytes:  int64(cfg.Server.MaxUploadMB) << 20,
		IncludeExcluded: cfg.Output.IncludeExcluded,
	}
}

// newRouter wires the HTTP API onto env.
func newRouter(env *appEnv, opts serverOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(rateLimit(rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)))
		}
		r.Get("/nglists", handleNGLists(env))
		r.Post("/format", handleFormat(env, opts))
	})

	return r
}

// rateLimit rejects requests with 429 once limiter runs dry.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleNGLists(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := env.Provider.List(r.Context())
		if err != nil {
			zap.L().Error("serve: list nglists", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list nglists")
			return
		}
		writeJSONStatus(w, http.StatusOK, map[string][]string{"nglists": append([]string{nglist.None}, names...)})
	}
}

// formatResponse is the JSON body of POST /format?format=json.
type formatResponse struct {
	RunID    string         `json:"run_id"`
	Layout   string         `json:"layout"`
	NGList   string         `json:"nglist,omitempty"`
	Total    int            `json:"total"`
	Kept     []model.Record `json:"kept"`
	Excluded []model.Record `json:"excluded"`
}

func handleFormat(env *appEnv, opts serverOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, opts.MaxUploadBytes)
		if err := r.ParseMultipartForm(opts.MaxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart upload")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close() //nolint:errcheck

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read upload")
			return
		}

		layout, err := reconcile.ParseLayout(r.FormValue("layout"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format := strings.ToLower(r.FormValue("format"))
		if format == "" {
			format = "xlsx"
		}
		if format != "xlsx" && format != "json" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
			return
		}

		source := filepath.Base(header.Filename)
		wb, err := fetcher.Decode(source, data)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable input file")
			return
		}

		res, err := env.Pipeline.Run(r.Context(), pipeline.Input{Source: source, Workbook: wb, Layout: layout}, r.FormValue("nglist"))
		switch {
		case errors.Is(err, ngmatch.ErrExclusionListNotFound):
			writeError(w, http.StatusNotFound, "nglist not found")
			return
		case errors.Is(err, reconcile.ErrMalformedInput):
			writeError(w, http.StatusBadRequest, "malformed input")
			return
		case err != nil:
			zap.L().Error("serve: format failed", zap.String("source", source), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "format failed")
			return
		}

		if format == "json" {
			writeJSONStatus(w, http.StatusOK, formatResponse{
				RunID:    res.RunID,
				Layout:   string(res.Layout),
				NGList:   res.NGList,
				Total:    res.Total,
				Kept:     res.Kept,
				Excluded: res.Excluded,
			})
			return
		}

		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, res.Kept, res.Excluded, export.Options{IncludeExcluded: opts.IncludeExcluded}); err != nil {
			zap.L().Error("serve: write xlsx", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to write workbook")
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", contentDisposition(export.DefaultFileName))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

// contentDisposition encodes a non-ASCII download name per RFC 6266.
func contentDisposition(name string) string {
	return fmt.Sprintf(`attachment; filename="formatted.xlsx"; filename*=UTF-8''%s`, url.PathEscape(name))
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, map[string]string{"error": msg})
}
