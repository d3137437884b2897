package gistcache

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/sync/singleflight"

	"github.com/always-cache/gist-cache/cache"
	cachekey "github.com/always-cache/gist-cache/pkg/cache-key"
	"github.com/always-cache/gist-cache/pkg/upstream"
)

const (
	DefaultTTL          = 60 * time.Second
	DefaultFetchTimeout = 5 * time.Second
)

type Config struct {
	// Storage for cache entries. An unbounded MemCache is used if nil.
	Cache cache.CacheProvider
	// Upstream used on cache misses. Required.
	Fetcher upstream.Fetcher
	// How long a stored payload is served without refetching.
	TTL time.Duration
	// Upper bound for a single upstream call.
	FetchTimeout time.Duration
	// Share one upstream call between concurrent misses for the same key.
	CollapseRequests bool
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Clock, time.Now if nil.
	Now func() time.Time
}

type GistCache struct {
	cache        cache.CacheProvider
	fetcher      upstream.Fetcher
	ttl          time.Duration
	fetchTimeout time.Duration
	collapse     bool
	sf           singleflight.Group
	log          zerolog.Logger
	now          func() time.Time
	router       chi.Router
}

// CreateCache initializes the gist cache instance and its routes.
func CreateCache(config Config) (*GistCache, error) {
	if config.Fetcher == nil {
		return nil, fmt.Errorf("gist cache needs an upstream fetcher")
	}

	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	} else {
		logger = *config.Logger
	}
	if b, ok := config.Fetcher.(interface{ BaseURL() string }); ok {
		logger = logger.With().Str("upstream", b.BaseURL()).Logger()
	}

	a := &GistCache{
		cache:        config.Cache,
		fetcher:      config.Fetcher,
		ttl:          config.TTL,
		fetchTimeout: config.FetchTimeout,
		collapse:     config.CollapseRequests,
		log:          logger,
		now:          config.Now,
	}
	if a.cache == nil {
		a.cache = cache.NewMemCache()
	}
	if a.ttl <= 0 {
		a.ttl = DefaultTTL
	}
	if a.fetchTimeout <= 0 {
		a.fetchTimeout = DefaultFetchTimeout
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.router = a.routes()
	return a, nil
}

// ServeHTTP implements the http.Handler interface.
func (a *GistCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *GistCache) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		hlog.NewHandler(a.log),
		hlog.RemoteAddrHandler("sourceIp"),
		hlog.RequestIDHandler("requestId", "X-Request-Id"),
		hlog.AccessHandler(logRequest),
		a.recover,
	)
	r.Get("/{username}", a.handleGists)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, ErrorNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorMethodNotAllowed,
			fmt.Sprintf("method %s not allowed", r.Method))
	})
	return r
}

// recover answers with a JSON error instead of dropping the connection on panics.
func (a *GistCache) recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hlog.FromRequest(r).WithLevel(zerolog.PanicLevel).Interface("error", err).Msg("Panic in gist handler")
				writeError(w, http.StatusInternalServerError, ErrorInternal, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// handleGists serves GET /{username}.
// A fresh cached payload is returned without contacting the upstream,
// anything else results in exactly one (possibly shared) upstream call.
func (a *GistCache) handleGists(w http.ResponseWriter, r *http.Request) {
	key := cachekey.FromQuery(usernameParam(r), r.URL.Query())
	now := a.now()
	log := hlog.FromRequest(r).With().Str("key", key.String()).Logger()

	var cs CacheStatus
	entry, found, err := a.cache.Get(key)
	if err != nil {
		log.Warn().Err(err).Msg("Could not retrieve from cache")
		found = false
	}
	if found && cache.IsFresh(entry, now, a.ttl) {
		cs.Hit()
		cs.TimeToLive = int((a.ttl - now.Sub(entry.StoredAt)) / time.Second)
		log.Trace().Msg("Cache hit and serving")
		writeCacheStatus(w, cs)
		writeJSON(w, http.StatusOK, entry.Payload)
		return
	}
	if found {
		cs.Forward(FwdReasonStale)
	} else {
		cs.Forward(FwdReasonUriMiss)
	}

	res, shared, err := a.fetch(r.Context(), key)
	cs.Collapsed = shared
	if err == nil {
		cs.FwdStatus = res.StatusCode
	}

	outcome := Classify(key.Username, res, err)
	log.Trace().Str("outcome", outcome.Kind.String()).Int("upstreamStatus", cs.FwdStatus).Msg("Fetched from upstream")
	if outcome.Kind == OutcomeUpstreamError {
		log.Debug().Str("message", outcome.Message).Msg("Upstream call failed")
	}

	if outcome.Kind == OutcomeSuccess {
		if err := a.cache.Put(key, cache.Entry{StoredAt: now, Payload: outcome.Payload}); err != nil {
			log.Error().Err(err).Msg("Could not write to cache")
		} else {
			cs.Stored = true
		}
	}
	writeCacheStatus(w, cs)
	outcome.Write(w)
}

// fetch performs the upstream call for key, bounded by the fetch timeout.
// The returned bool reports whether the result was shared with other callers.
func (a *GistCache) fetch(ctx context.Context, key cachekey.Key) (upstream.Response, bool, error) {
	if !a.collapse {
		ctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
		res, err := a.fetcher.FetchGists(ctx, key)
		return res, false, err
	}
	// one caller going away must not fail the others waiting on the same call
	ctx = context.WithoutCancel(ctx)
	v, err, shared := a.sf.Do(key.String(), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
		return a.fetcher.FetchGists(ctx, key)
	})
	res, _ := v.(upstream.Response)
	return res, shared, err
}

// usernameParam returns the decoded {username} path segment.
func usernameParam(r *http.Request) string {
	username := chi.URLParam(r, "username")
	// chi routes on the raw path when it differs from the decoded one
	if r.URL.RawPath != "" {
		if decoded, err := url.PathUnescape(username); err == nil {
			return decoded
		}
	}
	return username
}

func logRequest(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("Sending response to client")
}
