package api

import (
	"log/slog"
	"net/http"

	"github.com/kickzcaviar/seller-registration/config"
	"github.com/kickzcaviar/seller-registration/onboarding"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API is the small HTTP surface next to the bot: health checks, metrics and the
// callback the automation platform uses to DM existing sellers.
type API struct {
	logger       *slog.Logger
	env          config.Environment
	notifier     onboarding.Notifier
	users        onboarding.UsernameLookup
	inviteURL    string
	notifySecret string
	gatherer     prometheus.Gatherer
}

type Config struct {
	Env          config.Environment
	Notifier     onboarding.Notifier
	Users        onboarding.UsernameLookup
	InviteURL    string
	NotifySecret string
	Gatherer     prometheus.Gatherer
}

func NewAPI(logger *slog.Logger, cfg Config) *API {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &API{
		logger:       logger,
		env:          cfg.Env,
		notifier:     cfg.Notifier,
		users:        cfg.Users,
		inviteURL:    cfg.InviteURL,
		notifySecret: cfg.NotifySecret,
		gatherer:     gatherer,
	}
}

func (a *API) Handler() http.Handler {
	r := http.NewServeMux()

	r.HandleFunc("GET /healthz", a.getHealthz)
	r.Handle("GET /metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	r.HandleFunc("POST /notify-existing-seller", a.postNotifyExistingSeller)

	return useMiddlewares(r,
		a.loggingMiddleware(),
		a.corsMiddleware(),
		a.requestIDMiddleware(),
	)
}

func (a *API) getHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
