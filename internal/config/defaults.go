package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.SnapshotDir == "" {
		cfg.Storage.SnapshotDir = "/usr/local/var/mekiki/data/snapshot"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/mekiki/data/indices/keyword"
	}
	if cfg.Embedding.Kind == "" {
		cfg.Embedding.Kind = "onnx"
	}
	if cfg.Embedding.TextModelPath == "" {
		cfg.Embedding.TextModelPath = "/usr/local/var/mekiki/data/models/clip-text.onnx"
	}
	if cfg.Embedding.ImageModelPath == "" {
		cfg.Embedding.ImageModelPath = "/usr/local/var/mekiki/data/models/clip-vision.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 77
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.DefaultTextWeight == 0 {
		cfg.Search.DefaultTextWeight = 0.5
	}
	if cfg.Search.TitleBoost == 0 {
		cfg.Search.TitleBoost = 5.0
	}
	if cfg.Search.LockTimeoutMS == 0 {
		cfg.Search.LockTimeoutMS = 2000
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".jsonl", ".xlsx"}
	}
}
