package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"truelink/api"
	"truelink/downloader"
	"truelink/internal"
)

var (
	configPath  string
	cookiesPath string
	proxyURL    string
	debug       bool
	quiet       bool
	logLevel    string
	logFile     string
	config      *internal.Config
)

var rootCmd = &cobra.Command{
	Use:     "truelink",
	Short:   "Resolve file-host, video-host and shortener URLs to direct links",
	Version: "v" + api.Version,
	Long: `TrueLink resolves links from file hosts, video embeds and link shorteners
into direct download URLs. Run it as an HTTP service or use it from the shell.

Examples:
  truelink serve --port 8080
  truelink resolve https://www.mediafire.com/file/abc/file.zip/file
  truelink batch https://pixeldrain.com/u/abc https://1drv.ms/u/s!abc
  truelink fetch -o downloads -r 5M https://pixeldrain.com/u/abc
  truelink --cookies cookies.txt resolve https://new.gdtot.dad/file/123

Environment Variables:
  TRUELINK_CONFIG       Path to a TOML config file
  PORT                  HTTP port for serve (default 5000)
  DEFAULT_TIMEOUT       Per-resolution timeout in seconds (default 20)
  MAX_TIMEOUT           Upper bound for any timeout (default 120)
  HTTP_PROXY_URL        Outbound HTTP/SOCKS5 proxy
  GDTOT_CRYPT, HUBDRIVE_CRYPT, KATDRIVE_CRYPT, DRIVEFIRE_CRYPT,
  XSRF_TOKEN, LARAVEL_SESSION, UPTOBOX_TOKEN, TERABOX_NDUS, DIRECT_INDEX
                        Provider credentials`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfiguration(cmd); err != nil {
			return fmt.Errorf("configuration error: %v", err)
		}

		if err := internal.InitLogger(config); err != nil {
			return fmt.Errorf("failed to initialize logger: %v", err)
		}

		if config.CookieFile != "" {
			if err := applyCookieFile(config.CookieFile); err != nil {
				validationErr := internal.NewValidationErrorWithValue("cookies_file", err.Error(), config.CookieFile).
					WithSuggestion("Ensure the file exists and is in Netscape cookie format")
				internal.LogValidationError(validationErr)
				return fmt.Errorf("invalid cookies file: %v", err)
			}
		}

		internal.LogDebug("Configuration loaded: timeout=%d, max_timeout=%d, concurrent=%d, workers=%d",
			config.DefaultTimeout, config.MaxTimeout, config.ConcurrentLimit, config.WorkerPoolSize)
		return nil
	},
}

// loadConfiguration layers defaults, the config file, the environment and
// finally flags the user actually set.
func loadConfiguration(cmd *cobra.Command) error {
	config = internal.DefaultConfig()

	path := configPath
	if path == "" {
		path = os.Getenv("TRUELINK_CONFIG")
	}
	if path != "" {
		if err := config.LoadFile(path); err != nil {
			return err
		}
	}

	config.LoadFromEnv()

	flags := cmd.Flags()
	if flags.Changed("debug") && debug {
		config.EnableDebug = true
		config.LogLevel = "debug"
	}
	if flags.Changed("quiet") {
		config.QuietMode = quiet
	}
	if logLevel != "" {
		config.LogLevel = strings.ToLower(logLevel)
	}
	if logFile != "" {
		config.LogFile = logFile
	}
	if proxyURL != "" {
		if err := validateProxyURL(proxyURL); err != nil {
			return err
		}
		config.ProxyURL = proxyURL
	}
	if cookiesPath != "" {
		config.CookieFile = cookiesPath
	}
	if flags.Changed("port") {
		config.Port = servePort
	}

	return config.ValidateConfig()
}

func applyCookieFile(path string) error {
	jar, err := downloader.LoadCookieFile(path)
	if err != nil {
		return err
	}
	filled := jar.ApplyTo(&config.Credentials)
	internal.LogInfo("Loaded %d cookies from %s", len(jar.Cookies), path)
	if len(filled) > 0 {
		internal.LogDebug("Credentials taken from cookie file: %s", strings.Join(filled, ", "))
	}
	return nil
}

// validateProxyURL validates the proxy URL format
func validateProxyURL(proxyURL string) error {
	if !strings.HasPrefix(proxyURL, "http://") &&
		!strings.HasPrefix(proxyURL, "https://") &&
		!strings.HasPrefix(proxyURL, "socks5://") {
		return fmt.Errorf("unsupported proxy scheme, use http://, https://, or socks5://")
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a TOML config file (env: TRUELINK_CONFIG)")
	flags.StringVar(&cookiesPath, "cookies", "", "Netscape-format cookie file supplying provider credentials (env: COOKIE_FILE)")
	flags.StringVar(&proxyURL, "proxy", "", "HTTP/SOCKS5 proxy URL for outbound requests (env: HTTP_PROXY_URL)")
	flags.BoolVarP(&debug, "debug", "d", false, "Enable debug logging with caller information (env: TRUELINK_DEBUG)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Only log errors and hide progress output (env: TRUELINK_QUIET)")
	flags.StringVar(&logLevel, "log-level", "", "Set log level (debug, info, warn, error) (env: LOG_LEVEL)")
	flags.StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr (env: LOG_FILE)")

	rootCmd.AddCommand(serveCmd, resolveCmd, batchCmd, domainsCmd, fetchCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
