package infrastructure

import (
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"houzel-server/internal/config"
	"houzel-server/internal/domain/chat"
	"houzel-server/internal/domain/scoring"
	"houzel-server/internal/infrastructure/compiler"
	"houzel-server/internal/infrastructure/database"
	"houzel-server/internal/infrastructure/database/repository/chatrepo"
	"houzel-server/internal/infrastructure/database/transaction"
	"houzel-server/internal/infrastructure/imagestore"
	"houzel-server/internal/infrastructure/inference"
)

// Infrastructure bundles the wired adapters the interface layer depends on.
type Infrastructure struct {
	DB         *gorm.DB
	ChatRepo   chat.ChatRepository
	ImageStore *imagestore.DiskStore
	Model      inference.Client
	Compiler   scoring.Compiler
	Logger     zerolog.Logger
}

// NewInfrastructure connects the database, runs migrations when enabled and
// constructs every adapter from configuration.
func NewInfrastructure(cfg *config.Config, log zerolog.Logger) (*Infrastructure, error) {
	db, err := database.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		log.Info().Msg("running database migrations")
		if err := database.Migration(db); err != nil {
			log.Error().Err(err).Msg("database migration failed")
			return nil, err
		}
	}

	store, err := imagestore.NewDiskStore(cfg.ImageStorageDir, cfg.ImageMaxBytes, cfg.ImageFetchTimeout)
	if err != nil {
		return nil, err
	}

	model := inference.NewOpenAIClient(inference.Options{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.ChatModel,
		Offline: cfg.OfflineMode(),
	}, store)
	if cfg.OfflineMode() {
		log.Warn().Msg("model client running offline, replies are deterministic mocks")
	}

	return &Infrastructure{
		DB:         db,
		ChatRepo:   chatrepo.NewChatGormRepository(transaction.NewDatabase(db)),
		ImageStore: store,
		Model:      model,
		Compiler:   compiler.NewCLICompiler(cfg.CompilerPythonBin, cfg.CompilerBaseDir, cfg.CompilerTimeout),
		Logger:     log,
	}, nil
}
