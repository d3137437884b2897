package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	gistcache "github.com/always-cache/gist-cache"
	"github.com/always-cache/gist-cache/cache"
	"github.com/always-cache/gist-cache/pkg/upstream"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	upstreamFlag       string
	ttlFlag            time.Duration
	timeoutFlag        time.Duration
	providerFlag       string
	maxEntriesFlag     int
	collapseFlag       bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	defaults := gistcache.DefaultFileConfig()
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", defaults.Port, "Port to listen on")
	flag.StringVar(&upstreamFlag, "upstream", defaults.Upstream, "Upstream API to proxy to")
	flag.DurationVar(&ttlFlag, "ttl", defaults.TTL, "How long responses are served from cache")
	flag.DurationVar(&timeoutFlag, "timeout", defaults.Timeout, "Timeout for upstream calls")
	flag.StringVar(&providerFlag, "provider", defaults.Provider, "Caching provider to use (memory, lru, sqlite)")
	flag.IntVar(&maxEntriesFlag, "max-entries", defaults.MaxEntries, "Maximum number of entries for the lru provider")
	flag.BoolVar(&collapseFlag, "collapse", defaults.Collapse, "Share upstream calls between concurrent identical requests")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	config := gistcache.DefaultFileConfig()
	if configFilenameFlag != "" {
		var err error
		if config, err = gistcache.LoadConfig(configFilenameFlag); err != nil {
			log.Fatal().Err(err).Str("config", configFilenameFlag).Msg("Could not load config")
		}
	}
	applyFlags(&config)
	if err := config.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	provider, err := newProvider(config)
	if err != nil {
		log.Fatal().Err(err).Msgf("Could not create %s cache provider", config.Provider)
	}

	client, err := upstream.NewClient(config.Upstream,
		upstream.WithTimeout(config.Timeout),
		upstream.WithUserAgent(config.UserAgent+"/"+version))
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create upstream client")
	}

	gc, err := gistcache.CreateCache(gistcache.Config{
		Cache:            provider,
		Fetcher:          client,
		TTL:              config.TTL,
		FetchTimeout:     config.Timeout,
		CollapseRequests: config.Collapse,
		Logger:           &log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create gist cache")
	}

	log.Info().
		Str("provider", config.Provider).
		Dur("ttl", config.TTL).
		Bool("collapse", config.Collapse).
		Msgf("Proxying port %v to %s", config.Port, config.Upstream)
	err = http.ListenAndServe(fmt.Sprintf(":%d", config.Port), gc)

	if err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// applyFlags overrides config file values with explicitly set flags.
func applyFlags(config *gistcache.FileConfig) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			config.Port = portFlag
		case "upstream":
			config.Upstream = upstreamFlag
		case "ttl":
			config.TTL = ttlFlag
		case "timeout":
			config.Timeout = timeoutFlag
		case "provider":
			config.Provider = providerFlag
		case "max-entries":
			config.MaxEntries = maxEntriesFlag
		case "collapse":
			config.Collapse = collapseFlag
		}
	})
}

func newProvider(config gistcache.FileConfig) (cache.CacheProvider, error) {
	switch config.Provider {
	case gistcache.ProviderMemory:
		return cache.NewMemCache(), nil
	case gistcache.ProviderLRU:
		return cache.NewLRUCache(config.MaxEntries)
	case gistcache.ProviderSQLite:
		return cache.NewSQLiteCache()
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", config.Provider)
	}
}
