package config

// Default returns the baseline configuration used before any file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: "~/.local/share/dubstitch/staging",
			OutputDir:  "~/dubstitch/output",
			LogDir:     "~/.local/share/dubstitch/logs",
		},
		Workers: Workers{
			Synthesis: 4,
			Encoding:  4,
		},
		Dialogue: Dialogue{
			MinGapMS:         80,
			MinDurationMS:    300,
			MergeSimilarity:  0.90,
			MergeContainment: 0.95,
		},
		Mix: Mix{
			DialoguePercent: 10,
			GapFraction:     0.5,
			GapCapPercent:   30,
			DubHeadroomDB:   1,
		},
		Batch: Batch{
			FlushSize: 10,
		},
		Output: Output{
			Height:         1080,
			StitchedSuffix: "-dubbed",
		},
		Synthesis: Synthesis{
			Command:  "dub-tts",
			Voice:    "default",
			Language: "en",
			Speed:    1.0,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
