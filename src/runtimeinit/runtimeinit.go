package runtimeinit

import (
	"fmt"
	"log"

	"screenshot-native/src/clipboard"
	"screenshot-native/src/config"
	"screenshot-native/src/hotkey"
	"screenshot-native/src/notification"
	"screenshot-native/src/screenshot"
)

type Options struct {
	LoadOptions         config.LoadOptions
	SetupLogging        func(bool)
	ShowBlockingErrors  bool
	RequireValidHotkeys bool
}

func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		if opts.ShowBlockingErrors {
			notification.ShowBlockingError("Configuration error", err.Error())
		}
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}
	if cfg.EnvPath != "" {
		log.Printf("Loaded configuration from %s", cfg.EnvPath)
	}

	if opts.RequireValidHotkeys {
		if err := validateHotkeys(cfg); err != nil {
			if opts.ShowBlockingErrors {
				notification.ShowBlockingError("Invalid hotkey", fmt.Sprintf("%v\n\nPlease fix HOTKEY in your .env file.", err))
			}
			return nil, err
		}
	}

	screenshot.WindowSettleDelay = cfg.WindowSettle
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
	}

	return cfg, nil
}

func validateHotkeys(cfg *config.Config) error {
	if _, err := hotkey.ParseShortcut(cfg.Hotkey); err != nil {
		return fmt.Errorf("HOTKEY %q: %w", cfg.Hotkey, err)
	}
	if cfg.FullscreenHotkey != "" {
		if _, err := hotkey.ParseShortcut(cfg.FullscreenHotkey); err != nil {
			return fmt.Errorf("HOTKEY_FULLSCREEN %q: %w", cfg.FullscreenHotkey, err)
		}
	}
	return nil
}
