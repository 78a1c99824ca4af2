// Package metrics exposes service lifecycle events as Prometheus counters.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// Collector implements simpleblog.EventSink by counting events.
type Collector struct {
	registrations     prometheus.Counter
	logins            *prometheus.CounterVec
	accountsDeleted   prometheus.Counter
	postsCreated      prometheus.Counter
	postsDeleted      prometheus.Counter
	assetsStored      *prometheus.CounterVec
	assetRemoveFailed prometheus.Counter
}

var _ simpleblog.EventSink = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simpleblog_registrations_total",
			Help: "Number of identities registered",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simpleblog_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"succeeded"}),
		accountsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simpleblog_accounts_deleted_total",
			Help: "Number of identities deleted",
		}),
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simpleblog_posts_created_total",
			Help: "Number of posts created",
		}),
		postsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simpleblog_posts_deleted_total",
			Help: "Number of posts deleted",
		}),
		assetsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simpleblog_assets_stored_total",
			Help: "Objects written to the blob store by folder",
		}, []string{"folder"}),
		assetRemoveFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simpleblog_asset_remove_failures_total",
			Help: "Blob store deletes that failed and left an orphan",
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.accountsDeleted,
		c.postsCreated,
		c.postsDeleted,
		c.assetsStored,
		c.assetRemoveFailed,
	)

	return c
}

func (c *Collector) IdentityRegistered(ctx context.Context, identity *simpleblog.Identity) error {
	c.registrations.Inc()
	return nil
}

func (c *Collector) LoginAttempted(ctx context.Context, succeeded bool) error {
	c.logins.WithLabelValues(strconv.FormatBool(succeeded)).Inc()
	return nil
}

func (c *Collector) IdentityDeleted(ctx context.Context, identityID uuid.UUID) error {
	c.accountsDeleted.Inc()
	return nil
}

func (c *Collector) PostCreated(ctx context.Context, post *simpleblog.Post) error {
	c.postsCreated.Inc()
	return nil
}

func (c *Collector) PostDeleted(ctx context.Context, postID uuid.UUID) error {
	c.postsDeleted.Inc()
	return nil
}

func (c *Collector) AssetStored(ctx context.Context, folder string, asset simpleblog.Asset) error {
	c.assetsStored.WithLabelValues(folder).Inc()
	return nil
}

func (c *Collector) AssetRemoveFailed(ctx context.Context, asset simpleblog.Asset, err error) error {
	c.assetRemoveFailed.Inc()
	return nil
}

// Handler returns the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
