package database

import (
	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"gorm.io/gorm"
)

var AutoMaintainRange = []any{
	&models.DocumentRecord{},
}

func RunMigration(source *gorm.DB) error {
	if err := source.AutoMigrate(AutoMaintainRange...); err != nil {
		return err
	}

	// Lookups by owner and parent are the hot paths of every collection.
	for _, field := range []string{"post_id", "user_id", "author_id", "recipient_id"} {
		stmt := "CREATE INDEX IF NOT EXISTS idx_documents_" + field +
			" ON " + source.NamingStrategy.TableName("DocumentRecord") +
			" (collection, (data->>'" + field + "'))"
		if err := source.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
