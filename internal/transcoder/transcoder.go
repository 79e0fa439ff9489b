package transcoder

import (
	"context"
	"fmt"
	"io"
	"time"

	"scryfall-ndjson/internal/config"
	"scryfall-ndjson/internal/parser"
	"scryfall-ndjson/internal/sink"

	"github.com/sirupsen/logrus"
)

// Downloader opens the streaming body of a bulk-data file.
// *bulkdata.Client satisfies it.
type Downloader interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// Transcoder rewrites a downloaded JSON array as NDJSON lines, one record at
// a time, fanning every line out to all sinks in order.
type Transcoder struct {
	downloader    Downloader
	style         parser.Style
	progressEvery int
}

// New builds a Transcoder from a validated configuration.
func New(cfg *config.Config, dl Downloader) (*Transcoder, error) {
	style, err := parser.ParseStyle(cfg.Style)
	if err != nil {
		return nil, &config.ConfigError{Field: "style", Reason: err.Error()}
	}
	return &Transcoder{downloader: dl, style: style, progressEvery: cfg.ProgressEvery}, nil
}

// Run downloads uri and writes every array element to each sink, stopping
// after limit records when limit > 0. It returns the number of records each
// sink received.
//
// Run takes ownership of sinks: all of them are released before it returns,
// whatever the outcome. If the download cannot be opened they are aborted and
// existing files stay as they were; otherwise they are closed. An empty sink
// list is rejected before any request is made.
func (t *Transcoder) Run(ctx context.Context, uri string, sinks []sink.Sink, limit int) (count int, err error) {
	if len(sinks) == 0 {
		return 0, &config.ConfigError{Field: "outputs", Reason: "at least one output sink is required"}
	}
	// Until the download is open nothing may touch the destinations, so a
	// failed request leaves earlier output in place.
	opened := false
	defer func() {
		release := sink.AbortAll
		if opened {
			release = sink.CloseAll
		}
		if cerr := release(sinks); cerr != nil {
			if err == nil {
				err = cerr
			} else {
				logrus.Warnf("releasing outputs after failure: %v", cerr)
			}
		}
	}()

	body, err := t.downloader.Open(ctx, uri)
	if err != nil {
		return 0, err
	}
	opened = true
	// Closing before the end of the stream is how a limit abandons the rest.
	defer body.Close()

	startTs := time.Now()
	p := parser.New(body, t.style)

	for limit <= 0 || count < limit {
		rec, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, err
		}

		line := append(rec, '\n')
		for _, s := range sinks {
			if err := s.Write(line); err != nil {
				return count, fmt.Errorf("record %d: %w", count, err)
			}
		}
		count++

		if t.progressEvery > 0 && count%t.progressEvery == 0 {
			logrus.Infof("[progress] %d records | %.1f rec/s", count, float64(count)/time.Since(startTs).Seconds())
		}
	}

	if limit > 0 && count >= limit {
		logrus.Infof("record limit %d reached, stopping download early", limit)
	}
	return count, nil
}
