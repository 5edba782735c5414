package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsamuelsen/qotd/internal/app"
	"github.com/jsamuelsen/qotd/internal/domain"
)

// origins lists every value of the qotd_quote_origin label.
var origins = []domain.Origin{
	domain.OriginUnknown,
	domain.OriginCache,
	domain.OriginRemote,
	domain.OriginFallback,
}

// storeCollector reads the store's state at scrape time.
type storeCollector struct {
	store *app.QuoteStore

	favorites *prometheus.Desc
	loading   *prometheus.Desc
	origin    *prometheus.Desc
}

// RegisterStoreMetrics exposes the quote store's state on reg:
//
//	qotd_favorites              number of favorites
//	qotd_quote_loading          1 while a refresh is in flight
//	qotd_quote_origin{origin}   1 for the origin of the current quote
func RegisterStoreMetrics(reg prometheus.Registerer, store *app.QuoteStore) error {
	c := &storeCollector{
		store:     store,
		favorites: prometheus.NewDesc("qotd_favorites", "Number of favorite quotes.", nil, nil),
		loading:   prometheus.NewDesc("qotd_quote_loading", "Whether a quote refresh is in flight.", nil, nil),
		origin:    prometheus.NewDesc("qotd_quote_origin", "Origin of the current daily quote.", []string{"origin"}, nil),
	}

	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}

		return fmt.Errorf("registering store metrics: %w", err)
	}

	return nil
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.favorites
	ch <- c.loading
	ch <- c.origin
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.store.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.favorites, prometheus.GaugeValue, float64(len(snap.Favorites)))
	ch <- prometheus.MustNewConstMetric(c.loading, prometheus.GaugeValue, boolValue(snap.IsLoading))

	for _, o := range origins {
		ch <- prometheus.MustNewConstMetric(c.origin, prometheus.GaugeValue, boolValue(snap.Origin == o), string(o))
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}

	return 0
}

// MetricsHandler serves the default Prometheus registry: Go runtime and
// process collectors plus whatever RegisterStoreMetrics added.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
