// Package region tracks the configured sending regions and their health.
//
// The registry holds a fixed, ordered view of the regions from config with
// the primary region first. The health monitor answers, per region, whether
// it is currently safe to send: provider quota available, sending enabled,
// and bounce/complaint/reputation within the region's thresholds. Health is
// evaluated live on every call and fails closed when the provider or the
// reputation feed cannot be reached.
package region
