package scaler

var (
	_ Scaler = (*ComponentSpread)(nil)
	_ Scaler = (*ProviderSpread)(nil)
	_ Scaler = (*Daemon)(nil)
	_ Scaler = (*Link)(nil)
	_ Scaler = (*Config)(nil)
)
