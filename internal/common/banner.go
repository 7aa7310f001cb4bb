package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the harness banner and the resolved target
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Pixel Parity", "version "+GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("base_url", config.ResolvedBaseURL()).
		Bool("external_server", config.ExternalServer()).
		Str("artifacts_dir", config.Output.ArtifactsDir).
		Msg("Parity harness configured")
}
