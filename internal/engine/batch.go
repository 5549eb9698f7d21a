package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/swoopdl/swoop/internal/config"
	"github.com/swoopdl/swoop/internal/transport"
	"github.com/swoopdl/swoop/internal/utils"
)

// BatchDownload runs a list of downloads with at most linkWorkers in
// flight. One failed entry does not cancel the rest; failures are
// aggregated into the returned error.
func BatchDownload(ctx context.Context, entries []config.DownloadEntry, linkWorkers int, settings config.Settings, clientConfig utils.HTTPClientConfig) error {
	log := utils.GetLogger("batch")
	log.Info().Int("totalFiles", len(entries)).Int("workers", linkWorkers).Int("connections", settings.Connections).Msg("Initiating batch download")
	if linkWorkers < 1 {
		linkWorkers = 1
	}

	errorCh := make(chan error, len(entries))
	var g errgroup.Group
	g.SetLimit(linkWorkers)
	for _, entry := range entries {
		g.Go(func() error {
			t, err := transport.For(entry.URL, clientConfig)
			if err != nil {
				errorCh <- fmt.Errorf("error preparing transport for %s: %v", entry.URL, err)
				return nil
			}
			eng := New(t, settings)
			sess, err := eng.Download(ctx, entry.URL, entry.OutputPath)
			if err != nil {
				errorCh <- fmt.Errorf("error downloading %s: %v", entry.URL, err)
				return nil
			}
			log.Info().Str("output", sess.OutputPath).Msg("Download finished")
			return nil
		})
	}
	g.Wait()
	close(errorCh)

	var failures []error
	for err := range errorCh {
		failures = append(failures, err)
	}
	if len(failures) > 0 {
		return fmt.Errorf("batch download completed with %d errors: %v", len(failures), failures)
	}
	return nil
}
