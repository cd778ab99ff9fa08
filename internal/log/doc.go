// Package log builds the slog loggers used by certcrawler.
//
// Two handlers are provided:
//   - SecureHandler masks secrets before they reach any output: custom
//     request headers from the config file (Authorization, Cookie, API keys),
//     bearer tokens, and credentials embedded in URL query strings or userinfo.
//   - ConsoleHandler prints short colored progress lines for terminals.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose, false)
//	logger.Info("crawl started", "seed", "https://example.com/")
//	slog.SetDefault(logger)
//
// Even in verbose mode, sensitive values are masked so that logs can be
// shared without leaking site credentials.
package log
