// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/srcrelay/internal/logger"
	"github.com/woozymasta/srcrelay/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Relay     Relay         `group:"Relay Options" namespace:"relay" env-namespace:"SRCRELAY_RELAY"`
	RCON      RCON          `group:"RCON Options" namespace:"rcon" env-namespace:"SRCRELAY_RCON"`
	Logs      Logs          `group:"Log Receiver Options" namespace:"logs" env-namespace:"SRCRELAY_LOGS"`
	Discord   Discord       `group:"Discord Options" namespace:"discord" env-namespace:"SRCRELAY_DISCORD"`
	Steam     Steam         `group:"Steam Options" namespace:"steam" env-namespace:"SRCRELAY_STEAM"`
	Server    Server        `group:"HTTP Options" env-namespace:"SRCRELAY"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"SRCRELAY_RATE_LIMIT"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"SRCRELAY_DB"`
	Status    Status        `group:"Status Options" namespace:"status" env-namespace:"SRCRELAY_STATUS"`
	A2S       A2S           `group:"A2S Options" namespace:"a2s" env-namespace:"SRCRELAY_A2S"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"SRCRELAY_GEOIP"`
	MQTT      MQTT          `group:"MQTT Options" namespace:"mqtt" env-namespace:"SRCRELAY_MQTT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"SRCRELAY_LOG"`

	Routes      string `short:"r" long:"routes" env:"SRCRELAY_ROUTES" description:"Path to routes YAML file" default:"routes.yaml"`
	CheckRoutes bool   `long:"check-routes" description:"Run RCON status against every route, print a report and exit"`
	FakeLogs    int    `long:"gen-fake-logs" hidden:"true"`
	Version     bool   `short:"v" long:"version" description:"Print version and build info"`
}

// Relay holds message policy options.
type Relay struct {
	// betteralign:ignore

	MaxMessageLength int      `long:"max-length" env:"MAX_LENGTH" description:"Max chat message length in characters before truncation" default:"512"`
	NoTrimNotice     bool     `long:"no-trim-notice" env:"NO_TRIM_NOTICE" description:"Do not react to truncated messages"`
	Blacklist        []string `long:"blacklist" env:"BLACKLIST" env-delim:"," description:"Drop game chat starting with any of these prefixes"`
	CommandPrefix    string   `long:"command-prefix" env:"COMMAND_PREFIX" description:"Prefix of relay commands" default:"--"`
	Commands         []string `long:"command" env:"COMMANDS" env-delim:"," description:"Aliases of the RCON command" default:"rcon" default:"command" default:"c"`
	AllowedUsers     []string `long:"allowed-user" env:"ALLOWED_USERS" env-delim:"," description:"User ids allowed to run RCON commands"`
	ShowLuaErrors    bool     `long:"show-lua-errors" env:"SHOW_LUA_ERRORS" description:"Relay Lua errors from the server log"`
	ErrorMarkers     []string `long:"error-marker" env:"ERROR_MARKERS" env-delim:"," description:"Case-insensitive markers of a failed relay command" default:"error"`
	UniqueTags       bool     `long:"unique-tags" env:"UNIQUE_TAGS" description:"Avoid group tag collisions between concurrent fragmented messages"`
	Verb             string   `long:"verb" env:"VERB" description:"Console command receiving relayed chat" default:"say_relay"`
	Ceiling          int      `long:"ceiling" env:"CEILING" description:"Per command size budget" default:"500"`
	PreviewLength    int      `long:"preview-length" env:"PREVIEW_LENGTH" description:"Max characters of RCON output shown in replies" default:"1993"`
}

// RCON holds remote console options.
type RCON struct {
	// betteralign:ignore

	IdleTimeout time.Duration `long:"idle-timeout" env:"IDLE_TIMEOUT" description:"Quiet period that completes a response" default:"500ms"`
	DialTimeout time.Duration `long:"dial-timeout" env:"DIAL_TIMEOUT" description:"TCP connect timeout" default:"5s"`
}

// Logs holds srcds log receiver options.
type Logs struct {
	// betteralign:ignore

	Address string `long:"address" env:"ADDRESS" description:"UDP listen address for logaddress_add" default:":9871"`
	Secret  string `long:"secret" env:"SECRET" description:"Shared sv_logsecret, empty accepts unsigned packets"`
}

// Discord holds chat platform options.
type Discord struct {
	// betteralign:ignore

	Token   string        `long:"token" env:"TOKEN" description:"Bot token used for reactions and replies"`
	APIURL  string        `long:"api-url" env:"API_URL" description:"REST API base URL" default:"https://discord.com/api/v10"`
	Timeout time.Duration `long:"timeout" env:"TIMEOUT" description:"HTTP request timeout" default:"10s"`
	NoRetry bool          `long:"no-retry" env:"NO_RETRY" description:"Do not retry failed webhook posts with a leading space"`
}

// Steam holds Steam Web API options.
type Steam struct {
	// betteralign:ignore

	APIKey    string  `long:"api-key" env:"API_KEY" description:"Steam Web API key, avatars disabled when empty"`
	APIURL    string  `long:"api-url" env:"API_URL" description:"Steam Web API base URL" default:"https://api.steampowered.com"`
	RateLimit float64 `long:"rate" env:"RATE" description:"Avatar lookups per second" default:"1"`
	Burst     int     `long:"burst" env:"BURST" description:"Avatar lookup burst" default:"5"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address     string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"HTTP listen address, empty disables the API" default:":8080"`
	AuthToken   string `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"API bearer token"`
	MaxBodySize int64  `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"16384"`
	TrustProxy  bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	Workers     int    `long:"workers" env:"WORKERS" description:"Inbound message workers" default:"10"`
	QueueSize   int    `long:"queue-size" env:"QUEUE_SIZE" description:"Inbound message queue size" default:"1000"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"30"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
	DedupWindow    time.Duration `long:"dedup-window" env:"DEDUP_WINDOW" description:"Ignore a message id seen again within duration" default:"5m"`
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path         string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"srcrelay.db"`
	PruneAvatars bool   `long:"prune-avatars" description:"Delete cached avatars and exit"`
}

// Status holds server status polling options.
type Status struct {
	// betteralign:ignore

	Interval     time.Duration `long:"interval" env:"INTERVAL" description:"A2S polling interval, 0 disables" default:"30s"`
	LastActivity bool          `long:"last-activity" env:"LAST_ACTIVITY" description:"Report last activity time for empty servers"`
}

// A2S holds Source Query protocol configuration.
type A2S struct {
	// betteralign:ignore

	Timeout    time.Duration `long:"timeout" env:"TIMEOUT" description:"Query timeout" default:"3s"`
	BufferSize uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"Response body buffer size" default:"1400"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file, empty disables" default:""`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// MQTT holds the optional broker bridge options.
type MQTT struct {
	// betteralign:ignore

	Broker   string `long:"broker" env:"BROKER" description:"Broker URL (tcp://host:1883), empty disables"`
	ClientID string `long:"client-id" env:"CLIENT_ID" description:"Client id" default:"srcrelay"`
	Username string `long:"username" env:"USERNAME" description:"Broker username"`
	Password string `long:"password" env:"PASSWORD" description:"Broker password"`
	Prefix   string `long:"prefix" env:"PREFIX" description:"Topic prefix" default:"srcrelay"`
	QoS      byte   `long:"qos" env:"QOS" description:"Publish and subscribe QoS" default:"1"`
}

// ErrNoAuthToken is returned when the HTTP API is enabled without a token.
var ErrNoAuthToken = errors.New("required flag `-t, --auth-token' or environment variable `SRCRELAY_AUTH_TOKEN` was not specified")

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print(os.Stdout)
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return &cfg
}

// Validate checks option combinations that flags alone cannot express.
func (c *Config) Validate() error {
	if c.Server.Address != "" && c.Server.AuthToken == "" {
		return ErrNoAuthToken
	}
	if c.Relay.MaxMessageLength <= 0 {
		return fmt.Errorf("relay max length must be positive, got %d", c.Relay.MaxMessageLength)
	}
	if c.Relay.Ceiling <= len(c.Relay.Verb)+8 {
		return fmt.Errorf("relay ceiling %d is too small for verb %q", c.Relay.Ceiling, c.Relay.Verb)
	}
	if c.Server.Workers <= 0 || c.Server.QueueSize <= 0 {
		return errors.New("http workers and queue size must be positive")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}

	return nil
}
