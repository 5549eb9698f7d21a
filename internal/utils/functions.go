package utils

import (
	"fmt"
	"net"
	"net/http"
	u "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

// RenewOutputPath returns a non-colliding variant of outputPath, e.g.
// "file-(1).bin" when "file.bin" already exists.
func RenewOutputPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	index := 1
	for {
		outputPath = filepath.Join(dir, fmt.Sprintf("%s-(%d)%s", name, index, ext))
		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			return outputPath
		}
		index++
	}
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

func CreateHTTPClient(clientConfig HTTPClientConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100, // for connection reuse
		IdleConnTimeout:     clientConfig.KATimeout,
		DisableCompression:  true,
		MaxConnsPerHost:     0,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	if clientConfig.ProxyURL != "" {
		proxyURLParsed, err := u.Parse(clientConfig.ProxyURL)
		if err != nil {
			log.Error().Err(err).Str("proxy", clientConfig.ProxyURL).Msg("Invalid proxy URL, proceeding without proxy")
		} else {
			if clientConfig.ProxyUsername != "" {
				proxyURLParsed.User = u.UserPassword(clientConfig.ProxyUsername, clientConfig.ProxyPassword)
			}
			transport.Proxy = http.ProxyURL(proxyURLParsed)
			log.Debug().Str("proxy", clientConfig.ProxyURL).Msg("Using proxy for connections")
		}
	}
	return &http.Client{
		Timeout:   clientConfig.Timeout,
		Transport: transport,
	}
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func FormatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "0 B/s"
	}
	formatted := FormatBytes(uint64(bytesPerSecond))
	return formatted[:len(formatted)-1] + "B/s" // Slice off "B" and add "B/s"
}

// CleanParts removes stray chunk files ("<output>.part<N>") and the merge
// scratch file left behind by an interrupted download.
func CleanParts(outputPath string) error {
	dir := filepath.Dir(outputPath)
	files, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	partPrefix := filepath.Base(outputPath) + ".part"
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if strings.HasPrefix(file.Name(), partPrefix) {
			if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
				return err
			}
		}
	}
	tempMerge := outputPath + ".tmp"
	if _, err := os.Stat(tempMerge); err == nil {
		if err := os.Remove(tempMerge); err != nil {
			return err
		}
	}
	return nil
}
