package feed

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Addr string `mapstructure:"addr"` // пусто: лента выключена
	Path string `mapstructure:"path"`
}

// Serve поднимает HTTP-сервер с лентой и гасит его при отмене ctx.
func (h *Hub) Serve(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = "/feed"
	}
	mux := http.NewServeMux()
	mux.Handle(path, h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.log.Info("feed listening", zap.String("addr", cfg.Addr), zap.String("path", path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	h.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}
