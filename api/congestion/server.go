package congestion

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/railflow/core/pipeline"
	"github.com/kilianp07/railflow/infra/logger"
)

// NewMux routes the congestion API. Requests must include an Authorization
// header with "Bearer <token>" when token is non-empty.
func NewMux(h History, c LatestCache, p pipeline.RawPredictor, token string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(LatestPath, requireToken(token, NewLatestHandler(h, c)))
	mux.Handle(HistoryPath, requireToken(token, NewHistoryHandler(h)))
	mux.Handle(PredictPath, requireToken(token, NewPredictHandler(p)))
	return mux
}

func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Serve serves handler on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	log := logger.New("api")
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("api server shutdown: %v", err)
		}
	}()
	log.Infof("serving congestion API on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
