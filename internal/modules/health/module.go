package health

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"botfleet/internal/broker"
	"botfleet/internal/modules/config"
	"botfleet/internal/modules/health/service"
	schedsvc "botfleet/internal/modules/scheduler/service"
	"botfleet/pkg/logger"
)

// NewMux builds the admin mux: liveness, readiness, a debug snapshot
// and the prometheus scrape endpoint. The control module mounts the
// bot endpoints on the same mux.
func NewMux(state *service.State) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"ready":           state.Ready(),
			"brokerConnected": state.BrokerConnected(),
			"uptimeSec":       int64(state.Uptime().Seconds()),
			"lastEvalUnix": func() int64 {
				t := state.LastEval()
				if t.IsZero() {
					return 0
				}
				return t.Unix()
			}(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = sonic.ConfigDefault.NewEncoder(w).Encode(resp)
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// WatchProcess feeds the health state: every scheduler tick stamps
// lastEval, and a slow poll tracks broker connectivity.
func WatchProcess(lc fx.Lifecycle, sched *schedsvc.Scheduler, sess broker.Session, state *service.State, ctx context.Context) {
	sched.SetTickObserver(state.MarkEval)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ticker := time.NewTicker(15 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						state.SetBrokerConnected(sess.IsConnected())
					}
				}
			}()
			return nil
		},
	})
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, mux *http.ServeMux, state *service.State) {
	srv := &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Admin.Addr)
			if err != nil {
				return err
			}
			logger.Info("[ADMIN] listening on %s", cfg.Admin.Addr)
			go func() { _ = srv.Serve(ln) }()
			state.SetReady(true)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			state.SetReady(false)
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewMux,
		),
		fx.Invoke(RunHTTP, WatchProcess),
	)
}
