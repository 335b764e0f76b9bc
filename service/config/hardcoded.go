package config

// NewHardCoded serves the built-in defaults. Useful for tests and for a
// quick start without a settings file.
func NewHardCoded() IService {
	settings := DefaultSettings()
	settings.normalize()
	return &settingsService{
		settings: settings,
	}
}

// NewFromSettings serves the given settings after normalisation.
func NewFromSettings(settings Settings) (IService, error) {
	settings.normalize()
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return &settingsService{
		settings: settings,
	}, nil
}
