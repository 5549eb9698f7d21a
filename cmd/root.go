package cmd

import (
	"fmt"
	u "net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/swoopdl/swoop/internal/config"
	"github.com/swoopdl/swoop/internal/engine"
	"github.com/swoopdl/swoop/internal/transport"
	"github.com/swoopdl/swoop/internal/utils"
)

var (
	output        string
	connections   int
	chunkSize     int64
	timeout       time.Duration
	kaTimeout     time.Duration
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	headers       []string
	urlListFile   string
	numLinks      int
	configFile    string
	cleanOutput   bool
	debug         bool
)

var SwoopVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "swoop",
	Short:   "Swoop is a fast parallel download manager",
	Version: SwoopVersion,
	Args:    cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		if cleanOutput {
			if err := engine.Clean(output); err != nil {
				utils.PrintError("Error cleaning up temporary files")
				os.Exit(1)
			}
			utils.PrintSuccess("Temporary files cleaned up")
			return
		}
		if len(args) == 0 && urlListFile == "" {
			utils.PrintError("No URL or URL list provided")
			os.Exit(1)
		}
		if urlListFile != "" && len(args) > 0 {
			utils.PrintError("Cannot specify url argument and --urllist together, choose one")
			os.Exit(1)
		}

		settings := config.Defaults()
		if configFile != "" {
			loaded, err := config.Load(configFile)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Failed to load config: %v", err))
				os.Exit(1)
			}
			settings = loaded
		}
		if cmd.Flags().Changed("connections") {
			settings.Connections = connections
		}
		if cmd.Flags().Changed("chunk-size") {
			settings.ChunkSize = chunkSize
		}
		if cmd.Flags().Changed("timeout") {
			settings.Timeout = timeout
		}
		if cmd.Flags().Changed("keep-alive-timeout") {
			settings.KATimeout = kaTimeout
		}
		if cmd.Flags().Changed("user-agent") {
			settings.UserAgent = userAgent
		}
		if err := settings.Validate(); err != nil {
			utils.PrintError(err.Error())
			os.Exit(1)
		}

		// Proxy auth may ride along in the URL
		parsedProxy, err := u.Parse(proxyURL)
		if err == nil && parsedProxy.User != nil && proxyUsername == "" {
			proxyUsername = parsedProxy.User.Username()
			if password, set := parsedProxy.User.Password(); set {
				proxyPassword = password
			}
			parsedProxy.User = nil
			proxyURL = parsedProxy.String()
		}
		clientConfig := utils.HTTPClientConfig{
			Timeout:       settings.Timeout,
			KATimeout:     settings.KATimeout,
			ProxyURL:      proxyURL,
			ProxyUsername: proxyUsername,
			ProxyPassword: proxyPassword,
			UserAgent:     settings.UserAgent,
			Headers:       utils.ParseHeaderArgs(headers),
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if len(args) > 0 {
			url := args[0]
			if _, err := u.Parse(url); err != nil {
				utils.PrintError("Invalid URL format")
				os.Exit(1)
			}
			t, err := transport.For(url, clientConfig)
			if err != nil {
				utils.PrintError(err.Error())
				os.Exit(1)
			}
			eng := engine.New(t, settings)
			eng.ShowProgress = true
			sess, err := eng.Download(ctx, url, output)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Download failed: %v", err))
				os.Exit(1)
			}
			utils.PrintSuccess(fmt.Sprintf("Saved %s", sess.OutputPath))
			return
		}

		entries, err := config.ReadDownloadList(urlListFile)
		if err != nil {
			utils.PrintError("Failed to read URL list file")
			os.Exit(1)
		}
		// Keep the total connection count bounded across parallel links
		maxConnections := 64
		if numLinks*settings.Connections > maxConnections {
			settings.Connections = max(maxConnections/numLinks, 1)
		}
		if err := engine.BatchDownload(ctx, entries, numLinks, settings, clientConfig); err != nil {
			fmt.Println()
			utils.PrintError("Encountered failed operation(s)")
			os.Exit(1)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaults := config.Defaults()
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (Swoop infers file name if not provided)")
	rootCmd.Flags().StringVarP(&urlListFile, "urllist", "l", "", "Path to YAML file containing URLs and output paths")
	rootCmd.Flags().IntVarP(&numLinks, "workers", "w", 1, "Number of links to download in parallel")
	rootCmd.Flags().IntVarP(&connections, "connections", "c", defaults.Connections, "Number of connections per download (1-16)")
	rootCmd.Flags().Int64Var(&chunkSize, "chunk-size", defaults.ChunkSize, "Chunk size hint in bytes (1KB-100MB)")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", defaults.Timeout, "Connection timeout (eg. 5s, 10m)")
	rootCmd.Flags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", defaults.KATimeout, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	rootCmd.Flags().StringVarP(&userAgent, "user-agent", "a", defaults.UserAgent, "User agent ('randomize' picks one)")
	rootCmd.Flags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	rootCmd.Flags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.Flags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.Flags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	rootCmd.Flags().StringVar(&configFile, "config", "", "Path to YAML settings file (created with defaults if missing)")

	// flags without shorthand
	rootCmd.Flags().BoolVar(&cleanOutput, "clean", false, "Clean up temporary files for provided output path")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
